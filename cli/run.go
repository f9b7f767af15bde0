package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowrun-ai/codeexec/engine/core"
	"github.com/flowrun-ai/codeexec/engine/execution"
	"github.com/flowrun-ai/codeexec/pkg/config"
)

func newRunCmd() *cobra.Command {
	var (
		language string
		timeout  time.Duration
		params   []string
		envVars  []string
		trusted  bool
	)
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a snippet from a file and print the response as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read snippet: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			svc, err := execution.NewService(cfg)
			if err != nil {
				return err
			}
			paramMap, err := parsePairs(params)
			if err != nil {
				return err
			}
			envMap, err := parsePairs(envVars)
			if err != nil {
				return err
			}
			req := &execution.Request{
				Code:         string(code),
				Language:     resolveLanguage(language, args[0]),
				Timeout:      timeout,
				Params:       toInput(paramMap),
				EnvVars:      core.EnvMap(envMap),
				IsCustomTool: trusted,
			}
			resp := svc.Execute(cmd.Context(), req)
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("execution failed: %s", resp.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "Snippet language (javascript, python); inferred from the file extension when omitted")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Execution timeout (default from configuration)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Parameter as key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&envVars, "env", "e", nil, "Environment variable as key=value (repeatable)")
	cmd.Flags().BoolVar(&trusted, "trusted", false, "Run as trusted custom-tool code in the in-process VM")
	return cmd
}

func resolveLanguage(flag, path string) string {
	if flag != "" {
		return flag
	}
	switch {
	case strings.HasSuffix(path, ".py"):
		return "python"
	default:
		return "javascript"
	}
}

func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		out[key] = value
	}
	return out, nil
}

func toInput(m map[string]string) core.Input {
	if len(m) == 0 {
		return nil
	}
	out := make(core.Input, len(m))
	for k, v := range m {
		// Values that parse as JSON keep their structure; everything else
		// stays a string.
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			out[k] = parsed
			continue
		}
		out[k] = v
	}
	return out
}
