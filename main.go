package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowrun-ai/codeexec/cli"
	"github.com/flowrun-ai/codeexec/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := cli.NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		logger.FromContext(ctx).Error("command failed", "error", err)
		os.Exit(1)
	}
}
