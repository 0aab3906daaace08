// Package httpserver exposes the daemon over HTTP: health, consumer status,
// archive search, prometheus metrics, and an SSE endpoint that replays a
// recording in the backend's stream format.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusSource reports the live consumer state.
type StatusSource interface {
	Status() logstream.Status
}

// Config wires optional collaborators. Nil fields disable their routes.
type Config struct {
	Archive  model.ArchiveReader
	Status   StatusSource
	Gatherer prometheus.Gatherer

	// Replay is served from the stream endpoint.
	Replay            []model.LogRecord
	ReplayRate        float64 // events per second; <= 0 means unpaced
	ReplayLoop        bool
	HeartbeatInterval time.Duration // defaults to 15s
}

// Server provides the daemon's HTTP API.
type Server struct {
	addr      string
	conf      Config
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, conf ...Config) *Server {
	if addr == "" {
		addr = "127.0.0.1:7070"
	}
	var c Config
	if len(conf) > 0 {
		c = conf[0]
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		conf:      c,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	if s.conf.Status != nil {
		r.GET("/api/status", s.handleStatus)
	}
	if s.conf.Archive != nil {
		r.GET("/api/logs", s.handleLogs)
		r.GET("/api/logs/levels", s.handleLevels)
	}
	if s.conf.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.conf.Gatherer, promhttp.HandlerOpts{})))
	}
	if s.conf.Replay != nil {
		r.GET(model.DefaultStreamPath, s.handleStream)
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Streams are long-lived; WriteTimeout would cut them.
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.addr, err)
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("httpserver: serve: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
