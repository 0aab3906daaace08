package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
	"github.com/keepwatching/logtail/internal/socketrpc"
)

const (
	defaultStreamURL           = "http://127.0.0.1:3033" + model.DefaultStreamPath
	defaultMaxRecords          = model.DefaultMaxRecords
	defaultReconnectDelay      = model.DefaultReconnectDelay
	defaultHandshakeTimeout    = 15 * time.Second
	defaultAPIAddr             = "127.0.0.1:7070"
	defaultQueryTimeout        = 30 * time.Second
	defaultInsertBatchSize     = 500
	defaultInsertFlushInterval = 250 * time.Millisecond
	defaultInsertFlushQueue    = 64
	defaultLogRetention        = 30 // days, 0 = disabled
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	StreamURL           string        `mapstructure:"stream-url"`
	Service             string        `mapstructure:"service"`
	Level               string        `mapstructure:"level"`
	Search              string        `mapstructure:"search"`
	MaxRecords          int           `mapstructure:"max-records"`
	Reconnect           bool          `mapstructure:"reconnect"`
	ReconnectDelay      time.Duration `mapstructure:"reconnect-delay"`
	HandshakeTimeout    time.Duration `mapstructure:"handshake-timeout"`
	ArchiveEnabled      bool          `mapstructure:"archive-enabled"`
	DBPath              string        `mapstructure:"db-path"`
	JournalEnabled      bool          `mapstructure:"journal-enabled"`
	JournalPath         string        `mapstructure:"journal-path"`
	InsertBatchSize     int           `mapstructure:"insert-batch-size"`
	InsertFlushInterval time.Duration `mapstructure:"insert-flush-interval"`
	InsertFlushQueue    int           `mapstructure:"insert-flush-queue-size"`
	LogRetention        int           `mapstructure:"log-retention"`
	RecordPath          string        `mapstructure:"record-path"`
	RecordCompress      bool          `mapstructure:"record-compress"`
	APIEnabled          bool          `mapstructure:"api-enabled"`
	APIAddr             string        `mapstructure:"api-addr"`
	SocketPath          string        `mapstructure:"socket-path"`
	UpdateInterval      time.Duration `mapstructure:"update-interval"`
	QueryTimeout        time.Duration `mapstructure:"query-timeout"`
	ConfigPath          string        `mapstructure:"-"` // not from config file
}

// filter builds the stream filter from the configured service, level and
// search term.
func (c appConfig) filter() logstream.Filter {
	return logstream.Filter{
		Service: model.Service(c.Service),
		Level:   model.Level(strings.ToLower(c.Level)),
		Search:  c.Search,
	}
}

// loadConfig layers defaults, the config file, LOGTAIL_* environment
// variables and changed command-line flags, in increasing precedence.
func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	dataDir := filepath.Join(home, ".local", "share", "logtail")

	v := viper.New()
	v.SetEnvPrefix("LOGTAIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("stream-url", defaultStreamURL)
	v.SetDefault("service", "")
	v.SetDefault("level", "")
	v.SetDefault("search", "")
	v.SetDefault("max-records", defaultMaxRecords)
	v.SetDefault("reconnect", true)
	v.SetDefault("reconnect-delay", defaultReconnectDelay)
	v.SetDefault("handshake-timeout", defaultHandshakeTimeout)
	v.SetDefault("archive-enabled", true)
	v.SetDefault("db-path", filepath.Join(dataDir, "logtail.duckdb"))
	v.SetDefault("journal-enabled", true)
	v.SetDefault("journal-path", filepath.Join(dataDir, "archive.journal"))
	v.SetDefault("insert-batch-size", defaultInsertBatchSize)
	v.SetDefault("insert-flush-interval", defaultInsertFlushInterval)
	v.SetDefault("insert-flush-queue-size", defaultInsertFlushQueue)
	v.SetDefault("log-retention", defaultLogRetention)
	v.SetDefault("record-path", "")
	v.SetDefault("record-compress", false)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("update-interval", model.DefaultUpdateInterval)
	v.SetDefault("query-timeout", defaultQueryTimeout)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return cfg, fmt.Errorf("binding flags: %w", err)
		}
	}

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
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, statErr := os.Stat(cfg.ConfigPath); statErr != nil {
		cfg.ConfigPath = ""
	}

	cfg.DBPath = expandHome(home, cfg.DBPath)
	cfg.JournalPath = expandHome(home, cfg.JournalPath)
	cfg.RecordPath = expandHome(home, cfg.RecordPath)
	cfg.SocketPath = expandHome(home, cfg.SocketPath)
	if cfg.RecordCompress && cfg.RecordPath != "" && !strings.HasSuffix(cfg.RecordPath, ".zst") {
		cfg.RecordPath += ".zst"
	}

	if cfg.StreamURL == "" {
		return cfg, errors.New("stream-url is required")
	}
	if cfg.MaxRecords <= 0 {
		return cfg, fmt.Errorf("invalid max-records: %d", cfg.MaxRecords)
	}
	if err := cfg.filter().Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
