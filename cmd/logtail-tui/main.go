package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var (
		configPath  string
		streamURL   string
		service     string
		level       string
		search      string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/logtail/config.yml)")
	flag.StringVar(&streamURL, "url", "", "override the log stream endpoint")
	flag.StringVar(&service, "service", "", "only stream this service")
	flag.StringVar(&level, "level", "", "only stream this level (info, warn, error)")
	flag.StringVar(&search, "search", "", "only stream messages containing this term")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("logtail-tui - KeepWatching log viewer\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	overrides := map[string]*string{
		"url": &cfg.StreamURL, "service": &cfg.Service, "level": &cfg.Level, "search": &cfg.Search,
	}
	flag.Visit(func(f *flag.Flag) {
		if dst, ok := overrides[f.Name]; ok {
			*dst = f.Value.String()
		}
	})
	if err := cfg.filter().Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	cleanupLogger := configureLogger()
	defer cleanupLogger()

	consumer := logstream.NewConsumer(logstream.Config{
		MaxRecords:       cfg.MaxRecords,
		HandshakeTimeout: cfg.HandshakeTimeout,
	})

	reconnectDelay := cfg.ReconnectDelay
	if !cfg.Reconnect {
		reconnectDelay = 0
	}
	page := tui.NewStreamPage(consumer, tui.Options{
		BaseURL:        cfg.StreamURL,
		Filter:         cfg.filter(),
		ReconnectDelay: reconnectDelay,
		UpdateInterval: cfg.UpdateInterval,
	})
	app := tui.NewApp(page)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// configureLogger keeps log output off the terminal while the TUI owns it.
func configureLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}
	logDir := filepath.Join(home, ".local", "state", "logtail")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}
	f, err := os.OpenFile(filepath.Join(logDir, "logtail-tui.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}
	log.SetOutput(f)
	return func() { _ = f.Close() }
}
