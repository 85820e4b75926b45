package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"go-live-lottie/internal/logging"
	"go-live-lottie/internal/lsp"
)

func newLSPCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Serve the preview as a language server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, closer, err := logging.NewFromConfig(cfg, "go-live-lottie-lsp")
			if err != nil {
				return fmt.Errorf("logging: %w", err)
			}
			defer closer.Close()

			// glsp logs through commonlog; keep it off stdout.
			var logPath *string
			if cfg.Logging.File != "" {
				logPath = &cfg.Logging.File
			}
			commonlog.Configure(commonlogVerbosity(cfg.Logging.Level), logPath)

			logger.Info("starting language server", "config", ctx.configPath)
			return lsp.New(cfg, logger).RunStdio()
		},
	}
}

func commonlogVerbosity(level string) int {
	switch level {
	case "debug":
		return 2
	case "error":
		return 0
	default:
		return 1
	}
}
