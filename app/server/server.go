package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"

	"stagetalk/app/client/provider"
	"stagetalk/app/config"
	"stagetalk/app/service/conversation"
	"stagetalk/app/service/queue"
	"stagetalk/app/service/quota"
	"stagetalk/app/service/store"
)

var _ do.Shutdownable = (*Server)(nil)

// Server is the HTTP surface the UI talks to, standing in for the
// original callable functions.
type Server struct {
	cfg      *config.Config
	app      *fiber.App
	validate *validator.Validate

	registry *provider.Registry
	clients  map[provider.ID]provider.Client
	quotaSvc *quota.Service
	storeSvc *store.Service
	queueSvc *queue.Service

	mu       sync.Mutex
	managers map[string]*conversation.Manager
}

func New(di *do.Injector) (*Server, error) {
	s := &Server{
		cfg:      do.MustInvoke[*config.Config](di),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		registry: do.MustInvoke[*provider.Registry](di),
		clients:  do.MustInvoke[map[provider.ID]provider.Client](di),
		quotaSvc: do.MustInvoke[*quota.Service](di),
		storeSvc: do.MustInvoke[*store.Service](di),
		queueSvc: do.MustInvoke[*queue.Service](di),
		managers: make(map[string]*conversation.Manager),
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	s.routes()

	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	api := s.app.Group("/api")

	ai := api.Group("/ai", s.requireUser)
	ai.Post("/call", s.handleCall)
	ai.Post("/provider", s.handleSetProvider)
	ai.Get("/providers", s.handleListProviders)
	ai.Get("/summaries", s.handleSummaries)
	ai.Get("/history", s.handleHistory)
	ai.Post("/session", s.handleNewSession)
	ai.Post("/reset", s.handleReset)

	api.Post("/conversations", s.requireUser, s.handleStartConversation)

	api.Get("/admin/stats", s.requireAdmin, s.handleStats)
}

// manager returns the conversation manager of the given user, creating
// one on first use. One instance per active chat.
func (s *Server) manager(userID string) *conversation.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.managers[userID]
	if !ok {
		m = conversation.NewManager(s.cfg, s.registry, s.clients)
		s.managers[userID] = m
	}

	return m
}

func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()

		if err := s.app.Shutdown(); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("HTTP server listening", "addr", s.cfg.Server.Listen)

	if err := s.app.Listen(s.cfg.Server.Listen); err != nil {
		slog.Error("Server stopped", "error", err)
	}
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
