package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
)

// cliConfig holds only TUI-relevant configuration. It reads the same file
// and LOGTAIL_* variables as the daemon.
type cliConfig struct {
	StreamURL        string        `mapstructure:"stream-url"`
	Service          string        `mapstructure:"service"`
	Level            string        `mapstructure:"level"`
	Search           string        `mapstructure:"search"`
	MaxRecords       int           `mapstructure:"max-records"`
	Reconnect        bool          `mapstructure:"reconnect"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect-delay"`
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`
	UpdateInterval   time.Duration `mapstructure:"update-interval"`
}

func (c cliConfig) filter() logstream.Filter {
	return logstream.Filter{
		Service: model.Service(c.Service),
		Level:   model.Level(strings.ToLower(c.Level)),
		Search:  c.Search,
	}
}

func loadCLIConfig(configPath string) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LOGTAIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("stream-url", "http://127.0.0.1:3033"+model.DefaultStreamPath)
	v.SetDefault("service", "")
	v.SetDefault("level", "")
	v.SetDefault("search", "")
	v.SetDefault("max-records", model.DefaultMaxRecords)
	v.SetDefault("reconnect", true)
	v.SetDefault("reconnect-delay", model.DefaultReconnectDelay)
	v.SetDefault("handshake-timeout", 15*time.Second)
	v.SetDefault("update-interval", model.DefaultUpdateInterval)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "logtail", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if cfg.MaxRecords <= 0 {
		return cfg, fmt.Errorf("invalid max-records: %d", cfg.MaxRecords)
	}
	return cfg, nil
}
