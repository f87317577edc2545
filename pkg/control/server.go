// Package control serves the line-oriented TCP command interface.
//
// Each request is one UTF-8 line; the reply is one line. Lines longer than
// Config.MaxLine are split and each piece is processed on its own.
package control

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-b9/pkg/tasks"
)

// Processor answers a request line.
type Processor interface {
	Process(ctx context.Context, text string, fromVoice bool) string
}

// Config holds server settings.
type Config struct {
	Addr         string
	MaxLine      int
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	BusyText     string
}

// DefaultConfig returns the stock control server settings.
func DefaultConfig() Config {
	return Config{
		Addr:         ":5000",
		MaxLine:      2048,
		IdleTimeout:  300 * time.Second,
		WriteTimeout: 10 * time.Second,
		BusyText:     "Busy. Too many connections.",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("control: address required")
	}
	if c.MaxLine < 1 {
		return errors.New("control: max line must be positive")
	}
	if c.IdleTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("control: timeouts must be positive")
	}
	return nil
}

// Server accepts control connections.
type Server struct {
	cfg    Config
	proc   Processor
	pool   *tasks.Pool
	logger *slog.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}

	accepted atomic.Int64
	refused  atomic.Int64
	requests atomic.Int64
}

// NewServer creates a server. Connections run on pool.
func NewServer(cfg Config, proc Processor, pool *tasks.Pool, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if proc == nil || pool == nil {
		return nil, errors.New("control: processor and pool are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		proc:   proc,
		pool:   pool,
		logger: logger.With("component", "control"),
		conns:  make(map[net.Conn]struct{}),
	}, nil
}

// ListenAndServe listens on cfg.Addr and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("control: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections on ln until ctx ends. It closes ln and every
// open connection on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.closeAll()
	})
	defer stop()

	s.logger.Info("listening", "addr", ln.Addr().String())
	backoff := 5 * time.Millisecond
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn("accept failed", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff = min(backoff*2, time.Second)
			continue
		}
		backoff = 5 * time.Millisecond
		s.accept(ctx, conn)
	}
}

func (s *Server) accept(ctx context.Context, conn net.Conn) {
	s.track(conn, true)
	err := s.pool.TryGo(func() {
		defer s.track(conn, false)
		defer conn.Close()
		s.serveConn(ctx, conn)
	})
	if err == nil {
		s.accepted.Add(1)
		return
	}

	s.refused.Add(1)
	s.logger.Warn("connection refused", "remote", conn.RemoteAddr().String(), "error", err)
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	conn.Write([]byte(s.cfg.BusyText + "\n"))
	conn.Close()
	s.track(conn, false)
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)
	logger.Info("connected")

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), s.cfg.MaxLine)
	sc.Split(splitLines(s.cfg.MaxLine))

	for {
		conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		if !sc.Scan() {
			break
		}
		msg := strings.TrimSpace(strings.ToValidUTF8(sc.Text(), "�"))
		if msg == "" {
			continue
		}
		s.requests.Add(1)
		logger.Info("request", "text", msg)

		resp := s.proc.Process(ctx, msg, false)
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if _, err := conn.Write([]byte(resp + "\n")); err != nil {
			logger.Warn("write failed", "error", err)
			return
		}
	}

	if err := sc.Err(); err != nil && ctx.Err() == nil {
		logger.Info("disconnected", "error", err)
		return
	}
	logger.Info("disconnected")
}

// splitLines splits on '\n' and cuts lines at n bytes.
func splitLines(n int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		limit := min(len(data), n)
		if i := bytes.IndexByte(data[:limit], '\n'); i >= 0 {
			return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
		}
		if len(data) >= n {
			return n, data[:n], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// Stats is a snapshot of server counters.
type Stats struct {
	Accepted int64 `json:"accepted"`
	Refused  int64 `json:"refused"`
	Requests int64 `json:"requests"`
	Open     int   `json:"open"`
}

// Stats returns current counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	open := len(s.conns)
	s.mu.Unlock()
	return Stats{
		Accepted: s.accepted.Load(),
		Refused:  s.refused.Load(),
		Requests: s.requests.Load(),
		Open:     open,
	}
}
