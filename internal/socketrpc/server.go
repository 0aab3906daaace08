package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
)

const (
	scannerInitBufSize  = 64 * 1024
	scannerMaxTokenSize = 4 * 1024 * 1024
)

// Controller is the live stream surface exposed over the socket.
// *logstream.Consumer satisfies it.
type Controller interface {
	Status() logstream.Status
	Pause()
	Resume()
	Clear()
	Reconnect()
	Records() []model.LogRecord
	Pending() []model.LogRecord
}

var errArchiveDisabled = errors.New("archive is disabled")

// Server exposes a Controller and an optional archive over a Unix domain
// socket using JSON-RPC 2.0.
type Server struct {
	socketPath string
	ctrl       Controller
	archive    model.ArchiveReader // nil when archiving is off
	listener   net.Listener
	wg         sync.WaitGroup
	quit       chan struct{}
	stopOnce   sync.Once

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer creates a new socket RPC server. archive may be nil.
func NewServer(socketPath string, ctrl Controller, archive model.ArchiveReader) *Server {
	return &Server{
		socketPath: socketPath,
		ctrl:       ctrl,
		archive:    archive,
		quit:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			// Nobody is listening; the file is stale.
			os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Printf("socketrpc: listening on %s", s.socketPath)
	return nil
}

// Stop closes the listener, waits for connections to drain, and removes
// the socket file. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
		// Idle clients would otherwise block their handlers in Scan.
		s.connMu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.connMu.Unlock()
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("socketrpc: accept error: %v", err)
				// Transient (fd limit); keep accepting.
				time.Sleep(50 * time.Millisecond)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) trackConn(conn net.Conn, add bool) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if !add {
		delete(s.conns, conn)
		return true
	}
	select {
	case <-s.quit:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	if !s.trackConn(conn, true) {
		return
	}
	defer s.trackConn(conn, false)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp := Response{JSONRPC: "2.0", ID: 0, Error: &RPCError{Code: codeParseError, Message: "parse error"}}
			encoder.Encode(resp)
			continue
		}

		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	marshalResult := func(v any, err error) Response {
		if err != nil {
			resp.Error = &RPCError{Code: codeApplication, Message: err.Error()}
			return resp
		}
		data, merr := json.Marshal(v)
		if merr != nil {
			resp.Error = &RPCError{Code: codeInternal, Message: merr.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	// decode accepts empty or null params so every field keeps its default.
	decode := func(v any) *Response {
		if len(req.Params) == 0 || string(req.Params) == "null" {
			return nil
		}
		if err := json.Unmarshal(req.Params, v); err != nil {
			resp.Error = &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
			return &resp
		}
		return nil
	}

	control := func(action func()) Response {
		action()
		return marshalResult(s.ctrl.Status(), nil)
	}

	switch req.Method {
	case "Status":
		return marshalResult(s.ctrl.Status(), nil)
	case "Pause":
		return control(s.ctrl.Pause)
	case "Resume":
		return control(s.ctrl.Resume)
	case "Clear":
		return control(s.ctrl.Clear)
	case "Reconnect":
		return control(s.ctrl.Reconnect)

	case "Snapshot":
		var p struct {
			Limit   int
			Pending bool
		}
		if bad := decode(&p); bad != nil {
			return *bad
		}
		records := s.ctrl.Records()
		if p.Pending {
			records = s.ctrl.Pending()
		}
		if p.Limit > 0 && len(records) > p.Limit {
			records = records[len(records)-p.Limit:]
		}
		if records == nil {
			records = []model.LogRecord{}
		}
		return marshalResult(records, nil)
	}

	if s.archive == nil {
		switch req.Method {
		case "TotalLogCount", "LevelCounts", "ServiceCounts", "CountsByMinute", "RecentLogs":
			return marshalResult(nil, errArchiveDisabled)
		}
	}

	switch req.Method {
	case "TotalLogCount":
		return marshalResult(s.archive.TotalLogCount())

	case "LevelCounts":
		return marshalResult(s.archive.LevelCounts())

	case "ServiceCounts":
		p := struct{ Limit int }{Limit: 10}
		if bad := decode(&p); bad != nil {
			return *bad
		}
		return marshalResult(s.archive.ServiceCounts(p.Limit))

	case "CountsByMinute":
		p := struct{ Window time.Duration }{Window: time.Hour}
		if bad := decode(&p); bad != nil {
			return *bad
		}
		if p.Window <= 0 {
			return *decodeErr(&resp, "Window must be positive")
		}
		return marshalResult(s.archive.CountsByMinute(p.Window))

	case "RecentLogs":
		var p struct{ Query model.ArchiveQuery }
		if bad := decode(&p); bad != nil {
			return *bad
		}
		for _, lvl := range p.Query.Levels {
			if !lvl.Valid() {
				return *decodeErr(&resp, fmt.Sprintf("unknown level %q", lvl))
			}
		}
		return marshalResult(s.archive.RecentLogs(p.Query))
	}

	resp.Error = &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	return resp
}

func decodeErr(resp *Response, msg string) *Response {
	resp.Error = &RPCError{Code: codeInvalidParams, Message: "invalid params: " + msg}
	return resp
}
