package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"

	"stagetalk/app/client/provider"
	"stagetalk/app/config"
	"stagetalk/app/service/conversation"
	"stagetalk/app/service/queue"
	"stagetalk/app/service/quota"
	"stagetalk/app/service/store"
)

// historyTail is how many parsed turns feed back into the next director
// prompt.
const historyTail = 10

// Service drives autonomous conversations: it consumes queued requests
// and loops director turns with a jittered delay until the turn budget
// or the quota runs out.
type Service struct {
	cfg      *config.Config
	registry *provider.Registry
	clients  map[provider.ID]provider.Client
	quotaSvc *quota.Service
	storeSvc *store.Service
	queueSvc *queue.Service
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:      do.MustInvoke[*config.Config](di),
		registry: do.MustInvoke[*provider.Registry](di),
		clients:  do.MustInvoke[map[provider.ID]provider.Client](di),
		quotaSvc: do.MustInvoke[*quota.Service](di),
		storeSvc: do.MustInvoke[*store.Service](di),
		queueSvc: do.MustInvoke[*queue.Service](di),
	}, nil
}

func (s *Service) Run(ctx context.Context) {
	group, ctx := errgroup.WithContext(ctx)

	for range s.cfg.Engine.Workers {
		group.Go(func() error {
			s.runWorker(ctx)
			return nil
		})
	}

	_ = group.Wait()
}

func (s *Service) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-s.queueSvc.Channel():
			if !ok {
				return
			}

			start := time.Now()
			if err := s.runConversation(ctx, req); err != nil {
				slog.Warn("Conversation ended with error", "user", req.UserID, "error", err)
			}

			slog.Info("Conversation finished",
				"user", req.UserID,
				"scene", req.Scene,
				"duration", time.Since(start))
		}
	}
}

func (s *Service) runConversation(ctx context.Context, req queue.Request) error {
	turns := req.Turns
	if turns <= 0 || turns > s.cfg.Engine.MaxTurns {
		turns = s.cfg.Engine.MaxTurns
	}

	manager := conversation.NewManager(s.cfg, s.registry, s.clients)
	defer manager.Stop()

	var history []conversation.HistoryEntry

	for turn := 0; turn < turns; turn++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.quotaSvc.Consume(req.UserID); err != nil {
			if errors.Is(err, quota.ErrTooSoon) {
				time.Sleep(s.cfg.Quota.MinInterval())
				turn--
				continue
			}

			return fmt.Errorf("quota rejected turn: %w", err)
		}

		raw, err := manager.GenerateResponse(ctx, req.Scene, req.Participants, history)
		if err != nil {
			return fmt.Errorf("manager.GenerateResponse: %w", err)
		}

		parsed := manager.ParseDirectorLine(raw, req.Participants)

		if err = s.storeSvc.SaveTurn(store.Turn{
			UserID:   req.UserID,
			Prompt:   req.Scene,
			Speaker:  parsed.Speaker,
			Response: parsed.Message,
			Provider: string(manager.ActiveProvider()),
		}); err != nil {
			slog.Error("Failed to persist turn", "user", req.UserID, "error", err)
		}

		history = append(history, conversation.HistoryEntry{
			Sender: parsed.Speaker,
			Text:   parsed.Message,
		})
		if len(history) > historyTail {
			history = history[len(history)-historyTail:]
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitterDelay(s.cfg.Engine.TurnDelay())):
		}
	}

	return nil
}

// jitterDelay spreads turns out by ±30% around the base delay so the
// conversation does not tick like a metronome.
func jitterDelay(base time.Duration) time.Duration {
	variation := 0.3 * float64(base)

	return base + time.Duration((rand.Float64()*2-1)*variation)
}
