package main

import (
	"log"

	"go-live-lottie/internal/config"
	"go-live-lottie/internal/host"
	"go-live-lottie/internal/logging"

	"github.com/neovim/go-client/nvim/plugin"
)

// Load config, set up the connection to Neovim and register the handlers.
// Stdout is the RPC stream, so nothing else may write to it.
func main() {
	cfg, path, _, err := config.Load("")
	if err != nil {
		log.Fatalf("[go-live-lottie] load config: %v", err)
	}

	logger, closer, err := logging.NewFromConfig(cfg, "go-live-lottie-nvim")
	if err != nil {
		log.Fatalf("[go-live-lottie] logging: %v", err)
	}
	defer closer.Close()

	plugin.Main(func(p *plugin.Plugin) error {
		logger.Info("registering handlers", "config", path)
		return host.Register(p, cfg, logger)
	})
}
