package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keepwatching/logtail/internal/httpserver"
	"github.com/keepwatching/logtail/internal/model"
	"github.com/keepwatching/logtail/internal/recording"
)

// runReplay serves a recording from the stream endpoint until interrupted.
func runReplay(cfg appConfig, path string, rate float64, loop bool) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	records, err := recording.ReadAll(path)
	if err != nil {
		return fmt.Errorf("reading recording: %w", err)
	}

	srv := httpserver.NewServer(cfg.APIAddr, httpserver.Config{
		Replay:     records,
		ReplayRate: rate,
		ReplayLoop: loop,
	})
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start replay server: %w", err)
	}
	defer srv.Stop()

	fmt.Printf("Replaying %d records from %s\n", len(records), shortenPath(path))
	fmt.Printf("Stream URL: http://%s%s\n", srv.Addr(), model.DefaultStreamPath)
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	<-sigCh
	return nil
}
