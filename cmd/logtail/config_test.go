package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keepwatching/logtail/internal/model"
)

func TestLoadConfigDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.StreamURL != defaultStreamURL {
		t.Errorf("StreamURL = %q", cfg.StreamURL)
	}
	if cfg.MaxRecords != model.DefaultMaxRecords {
		t.Errorf("MaxRecords = %d, want %d", cfg.MaxRecords, model.DefaultMaxRecords)
	}
	if !cfg.Reconnect || cfg.ReconnectDelay != model.DefaultReconnectDelay {
		t.Errorf("reconnect = %v/%v", cfg.Reconnect, cfg.ReconnectDelay)
	}
	if want := filepath.Join(home, ".local", "share", "logtail", "logtail.duckdb"); cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
	if cfg.ConfigPath != "" {
		t.Errorf("ConfigPath = %q, want empty without a file", cfg.ConfigPath)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "logtail.yml")
	body := "max-records: 200\nlevel: warn\nrecord-path: ~/rec/session.jsonl\nrecord-compress: true\nreconnect-delay: 2s\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOGTAIL_MAX_RECORDS", "300")

	cmd := newRunCmd(new(string))
	if err := cmd.Flags().Set("level", "error"); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, cmd.Flags())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.MaxRecords != 300 {
		t.Errorf("MaxRecords = %d, want env value 300", cfg.MaxRecords)
	}
	if cfg.Level != "error" {
		t.Errorf("Level = %q, want flag value error", cfg.Level)
	}
	if cfg.ReconnectDelay != 2*time.Second {
		t.Errorf("ReconnectDelay = %v, want file value 2s", cfg.ReconnectDelay)
	}
	if want := filepath.Join(home, "rec", "session.jsonl.zst"); cfg.RecordPath != want {
		t.Errorf("RecordPath = %q, want %q", cfg.RecordPath, want)
	}
	if cfg.ConfigPath != path {
		t.Errorf("ConfigPath = %q, want %q", cfg.ConfigPath, path)
	}
}

func TestLoadConfigRejectsBadFilter(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LOGTAIL_LEVEL", "loud")
	if _, err := loadConfig("", nil); err == nil {
		t.Fatal("loadConfig accepted unknown level")
	}
}

func TestLoadConfigRejectsBadMaxRecords(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LOGTAIL_MAX_RECORDS", "0")
	if _, err := loadConfig("", nil); err == nil {
		t.Fatal("loadConfig accepted max-records 0")
	}
}
