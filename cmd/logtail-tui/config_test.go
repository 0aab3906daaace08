package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keepwatching/logtail/internal/model"
)

func TestLoadCLIConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := loadCLIConfig("")
	if err != nil {
		t.Fatalf("loadCLIConfig: %v", err)
	}
	if cfg.MaxRecords != model.DefaultMaxRecords || !cfg.Reconnect {
		t.Errorf("defaults = %+v", cfg)
	}

	path := filepath.Join(home, "config.yml")
	if err := os.WriteFile(path, []byte("stream-url: http://admin.local/stream\nservice: nginx\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOGTAIL_SEARCH", "timeout")

	cfg, err = loadCLIConfig(path)
	if err != nil {
		t.Fatalf("loadCLIConfig with file: %v", err)
	}
	f := cfg.filter()
	if cfg.StreamURL != "http://admin.local/stream" || f.Service != model.ServiceNginx || f.Search != "timeout" {
		t.Errorf("config = %+v filter = %+v", cfg, f)
	}
}
