package queue

import (
	"log/slog"

	"github.com/samber/do"

	"stagetalk/app/service/conversation"
)

const bufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

// Service buffers autonomous conversation requests for the engine.
type Service struct {
	queue chan Request
}

// Request asks the engine to run one autonomous conversation.
type Request struct {
	UserID       string
	Scene        string
	Participants []conversation.Participant
	Turns        int
}

func New(_ *do.Injector) (*Service, error) {
	return &Service{
		queue: make(chan Request, bufferSize),
	}, nil
}

func (s *Service) Add(req Request) {
	// a request racing Shutdown may hit a closed channel
	defer func() {
		_ = recover()
	}()

	select {
	case s.queue <- req:
	default:
		slog.Warn("conversation queue is full")
	}
}

func (s *Service) Channel() <-chan Request {
	return s.queue
}

func (s *Service) Shutdown() error {
	close(s.queue)

	return nil
}
