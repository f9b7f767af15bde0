// Package cli provides the codeexec command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/flowrun-ai/codeexec/pkg/logger"
	"github.com/flowrun-ai/codeexec/pkg/version"
)

// NewRootCmd creates the root command with global flags.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codeexec",
		Short: "Run untrusted JavaScript and Python snippets with reference resolution",
		Long: "codeexec resolves workflow references inside user snippets, wraps them\n" +
			"for an isolation backend and reports results with user-visible error lines.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, json, source, err := logger.GetLoggerConfig(cmd)
			if err != nil {
				return err
			}
			logger.SetupLogger(level, json, source)
			return nil
		},
	}
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	cmd.PersistentFlags().Bool("log-source", false, "Include source locations in logs")
	cmd.AddCommand(newRunCmd())
	return cmd
}
