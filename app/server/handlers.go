package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"stagetalk/app/service/conversation"
	"stagetalk/app/service/queue"
	"stagetalk/app/service/store"
)

const userHeader = "X-User-ID"

// requireUser trusts the authenticating proxy in front of this service
// to have verified the user and put their id in the header.
func (s *Server) requireUser(c *fiber.Ctx) error {
	if c.Get(userHeader) == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "user must be authenticated"})
	}

	return c.Next()
}

func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if s.cfg.Server.AdminToken == "" || c.Get("X-Admin-Token") != s.cfg.Server.AdminToken {
		return c.Status(fiber.StatusForbidden).JSON(errorResponse{Error: "admin access required"})
	}

	return c.Next()
}

func (s *Server) handleCall(c *fiber.Ctx) error {
	userID := c.Get(userHeader)

	var req callRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}

	if err := s.quotaSvc.Consume(userID); err != nil {
		return c.Status(fiber.StatusTooManyRequests).JSON(errorResponse{Error: err.Error()})
	}

	manager := s.manager(userID)

	if req.Provider != "" && !manager.SetProvider(req.Provider) {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "unknown provider: " + req.Provider})
	}

	raw, err := manager.GenerateResponse(c.Context(), req.Prompt, req.Participants, req.History)
	if err != nil {
		return s.turnError(c, err)
	}

	turn := manager.ParseDirectorLine(raw, req.Participants)

	if err = s.storeSvc.SaveTurn(store.Turn{
		UserID:   userID,
		Prompt:   req.Prompt,
		Speaker:  turn.Speaker,
		Response: turn.Message,
		Provider: string(manager.ActiveProvider()),
	}); err != nil {
		slog.Error("Failed to persist turn", "user", userID, "error", err)
	}

	used, limit := s.quotaSvc.Usage(userID)

	return c.JSON(callResponse{
		Response:   raw,
		Speaker:    turn.Speaker,
		Message:    turn.Message,
		Provider:   string(manager.ActiveProvider()),
		QuotaUsed:  used,
		QuotaLimit: limit,
	})
}

func (s *Server) turnError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, conversation.ErrTurnInProgress):
		return c.Status(fiber.StatusConflict).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, conversation.ErrConversationStopped):
		return c.Status(fiber.StatusGone).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, conversation.ErrProvidersExhausted):
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}
}

func (s *Server) handleSetProvider(c *fiber.Ctx) error {
	var req providerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}

	if !s.manager(c.Get(userHeader)).SetProvider(req.Provider) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false})
	}

	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleListProviders(c *fiber.Ctx) error {
	descriptors := s.registry.List()

	list := make([]fiber.Map, 0, len(descriptors))
	for _, d := range descriptors {
		list = append(list, fiber.Map{
			"id":    d.ID,
			"name":  d.DisplayName,
			"model": d.Model,
		})
	}

	return c.JSON(list)
}

func (s *Server) handleSummaries(c *fiber.Ctx) error {
	summaries := s.manager(c.Get(userHeader)).Summaries()

	return c.JSON(summaries)
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	n := c.QueryInt("limit", 50)

	turns, err := s.storeSvc.History(c.Get(userHeader), n)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}

	return c.JSON(turns)
}

func (s *Server) handleNewSession(c *fiber.Ctx) error {
	sessionID := s.manager(c.Get(userHeader)).StartNewSession()

	return c.JSON(fiber.Map{"sessionId": sessionID})
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	s.manager(c.Get(userHeader)).Reset()

	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleStartConversation(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}

	s.queueSvc.Add(queue.Request{
		UserID:       c.Get(userHeader),
		Scene:        req.Scene,
		Participants: req.Participants,
		Turns:        req.Turns,
	})

	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.quotaSvc.Stats())
}
