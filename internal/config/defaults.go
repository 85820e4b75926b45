package config

import (
	"errors"
	"fmt"
	"net"
)

const (
	defaultConfigPath   = "~/.config/go-live-lottie/config.toml"
	defaultAddr         = "127.0.0.1:7778"
	defaultAssetsDir    = "~/.local/share/go-live-lottie/assets"
	defaultLogLevel     = "info"
	defaultLogFormat    = "console"
	defaultOpenBrowser  = true
	defaultFiletypeJSON = "json"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Preview: Preview{
			Addr:        defaultAddr,
			OpenBrowser: defaultOpenBrowser,
			AssetsDir:   defaultAssetsDir,
		},
		Detect: Detect{
			Filetypes: []string{defaultFiletypeJSON},
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Preview.Addr == "" {
		return errors.New("preview.addr must not be empty")
	}
	if _, _, err := net.SplitHostPort(c.Preview.Addr); err != nil {
		return fmt.Errorf("preview.addr %q: %w", c.Preview.Addr, err)
	}
	if len(c.Detect.Filetypes) == 0 {
		return errors.New("detect.filetypes must list at least one filetype")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
