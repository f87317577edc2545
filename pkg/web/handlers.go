package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-b9/pkg/hub"
)

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Text string `json:"text"`
}

// AskResponse is the reply to POST /api/ask.
type AskResponse struct {
	Text  string `json:"text"`
	Reply string `json:"reply"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.backend.Status(c.UserContext()))
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	return c.JSON(s.backend.History())
}

func (s *Server) handleRecoveries(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 500")
	}
	entries, err := s.backend.Recoveries(c.UserContext(), limit)
	if err != nil {
		s.logger.Error("journal query failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if entries == nil {
		return c.JSON([]any{})
	}
	return c.JSON(entries)
}

func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}
	reply := s.backend.Ask(c.UserContext(), req.Text)
	return c.JSON(AskResponse{Text: req.Text, Reply: reply})
}

func (s *Server) handleScan(c *fiber.Ctx) error {
	s.backend.Scan()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "scanning"})
}

func (s *Server) handlePTT(c *fiber.Ctx) error {
	s.backend.PushToTalk()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "listening"})
}

// handleEventsWS streams hub events to one dashboard.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	hub.NewClient(s.events, c).Run()
}
