// Package web serves the operator dashboard API and live event stream.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-b9/pkg/hub"
	"github.com/teslashibe/go-b9/pkg/inference"
	"github.com/teslashibe/go-b9/pkg/journal"
)

// Backend is what the dashboard observes and controls.
type Backend interface {
	// Status returns a JSON-encodable health snapshot.
	Status(ctx context.Context) any

	// History returns the conversation so far.
	History() []inference.Message

	// Recoveries returns recent recovery journal entries.
	Recoveries(ctx context.Context, limit int) ([]journal.Entry, error)

	// Ask answers a typed question without speaking it.
	Ask(ctx context.Context, text string) string

	// Scan starts a camera scan in the background.
	Scan()

	// PushToTalk starts command capture.
	PushToTalk()
}

// Config holds dashboard settings.
type Config struct {
	Addr      string
	StaticDir string // optional directory served at /
}

// DefaultConfig returns the stock dashboard settings.
func DefaultConfig() Config {
	return Config{Addr: ":8080"}
}

// Server is the dashboard.
type Server struct {
	cfg     Config
	app     *fiber.App
	backend Backend
	events  *hub.Hub
	logger  *slog.Logger
}

// NewServer creates the dashboard. The caller runs events, independently
// of Listen.
func NewServer(cfg Config, backend Backend, events *hub.Hub, logger *slog.Logger) (*Server, error) {
	if backend == nil || events == nil {
		return nil, errors.New("web: backend and hub are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		backend: backend,
		events:  events,
		logger:  logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "B-9 Dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/history", s.handleHistory)
	api.Get("/recoveries", s.handleRecoveries)
	api.Post("/ask", s.handleAsk)
	api.Post("/scan", s.handleScan)
	api.Post("/ptt", s.handlePTT)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s, nil
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the event hub.
func (s *Server) Hub() *hub.Hub {
	return s.events
}

// Listen serves on cfg.Addr until ctx ends.
func (s *Server) Listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdown); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
	})
	defer stop()

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	if err := s.app.Listener(ln); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
