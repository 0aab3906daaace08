package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/keepwatching/logtail/internal/duckdb"
	"github.com/keepwatching/logtail/internal/httpserver"
	"github.com/keepwatching/logtail/internal/journal"
	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
	"github.com/keepwatching/logtail/internal/recording"
	"github.com/keepwatching/logtail/internal/socketrpc"
)

// runServer consumes the stream headlessly, fanning records out to the
// archive and recorder, and serves the HTTP API and control socket.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		sinks   []model.RecordSink
		archive model.ArchiveReader
	)

	if cfg.ArchiveEnabled {
		store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		defer store.Close()
		archive = store

		// Open the archive journal for crash-safe replay and durable buffering.
		var archiveJournal *journal.Journal
		if cfg.JournalEnabled {
			archiveJournal, err = journal.Open(cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("failed to open archive journal: %w", err)
			}
			if err := replayUncommittedJournal(archiveJournal, store, cfg.InsertBatchSize); err != nil {
				_ = archiveJournal.Close()
				return fmt.Errorf("failed to replay archive journal: %w", err)
			}
		}

		insertBuffer := duckdb.NewInsertBuffer(store, duckdb.InsertBufferConfig{
			BatchSize:      cfg.InsertBatchSize,
			FlushInterval:  cfg.InsertFlushInterval,
			FlushQueueSize: cfg.InsertFlushQueue,
			Journal:        archiveJournal,
		})
		defer insertBuffer.Stop()
		sinks = append(sinks, insertBuffer)

		retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
			RetentionDays: cfg.LogRetention,
		})
		if retentionCleaner != nil {
			defer retentionCleaner.Stop()
		}
	}

	if cfg.RecordPath != "" {
		recorder, err := recording.Create(cfg.RecordPath)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Printf("recording: close: %v", err)
			}
		}()
		sinks = append(sinks, recorder)
	}

	consumer := logstream.NewConsumer(logstream.Config{
		MaxRecords:       cfg.MaxRecords,
		HandshakeTimeout: cfg.HandshakeTimeout,
		Sinks:            sinks,
		Metrics:          logstream.NewMetrics(reg),
	})

	streamURL, err := cfg.filter().Apply(cfg.StreamURL)
	if err != nil {
		return fmt.Errorf("invalid stream-url: %w", err)
	}

	// Closing the consumer first stops delivery to the sinks deferred above.
	openStream, closeStream := consumer.Open, consumer.Close
	if cfg.Reconnect {
		r := logstream.NewReconnector(consumer, cfg.ReconnectDelay)
		openStream, closeStream = r.Open, r.Close
	}
	defer closeStream()

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, httpserver.Config{
			Archive:  archive,
			Status:   consumer,
			Gatherer: reg,
		})
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for ctl and other local clients.
	sockServer := socketrpc.NewServer(cfg.SocketPath, consumer, archive)
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	printStartupBanner(cfg, streamURL)
	openStream(streamURL)
	log.Printf("logtail: streaming from %s", streamURL)

	g, gctx := errgroup.WithContext(ctx)

	// Log state transitions so headless runs leave a trace.
	g.Go(func() error {
		changes, unwatch := consumer.Watch()
		defer unwatch()
		last := consumer.State()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-changes:
			}
			if st := consumer.State(); st != last {
				if err := consumer.Err(); err != nil && st == logstream.StateClosedWithError {
					log.Printf("logtail: stream %s: %v", st, err)
				} else {
					log.Printf("logtail: stream %s", st)
				}
				last = st
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}
	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
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

	f, err := os.OpenFile(filepath.Join(logDir, "logtail.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

// replayUncommittedJournal decodes payloads left in the journal by an
// earlier run and archives them before new records arrive.
func replayUncommittedJournal(j *journal.Journal, store model.LogWriter, batchSize int) error {
	if j == nil {
		return nil
	}
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}

	decoder := logstream.NewDecoder()
	batch := make([]*model.LogRecord, 0, batchSize)
	batchMaxSeq := uint64(0)
	replayed, skipped := 0, 0

	flush := func() error {
		if batchMaxSeq == 0 {
			return nil
		}
		if len(batch) > 0 {
			if err := store.InsertLogBatch(batch); err != nil {
				return err
			}
		}
		if err := j.Commit(batchMaxSeq); err != nil {
			return err
		}
		replayed += len(batch)
		batch = make([]*model.LogRecord, 0, batchSize)
		batchMaxSeq = 0
		return nil
	}

	if err := j.Replay(func(seq uint64, payload []byte) error {
		if seq > batchMaxSeq {
			batchMaxSeq = seq
		}
		rec, err := decoder.Decode(payload)
		if err != nil {
			skipped++
			return nil
		}
		batch = append(batch, &rec)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	}); err != nil {
		return err
	}

	if err := flush(); err != nil {
		return err
	}
	if replayed > 0 || skipped > 0 {
		log.Printf("archive journal: replayed %d uncommitted records (%d undecodable)", replayed, skipped)
	}
	return nil
}
