package memory

import (
	"fmt"
	"sync"
	"time"
)

// Service is the bounded conversation memory of a single conversation.
// Messages accumulate until SummaryThreshold, then ApplySummary prunes
// them back to WindowSize and keeps a rolling summary instead.
type Service struct {
	mu sync.RWMutex

	messages  []Message
	summaries []Summary
	sessionID string
}

func New() *Service {
	s := &Service{}
	s.StartSession()

	return s
}

func (s *Service) AddMessage(role Role, content string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		SessionID: s.sessionID,
	}
	s.messages = append(s.messages, msg)

	return msg
}

func (s *Service) Context() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Context{
		RecentMessages: lastN(s.messages, WindowSize),
		Summaries:      lastN(s.summaries, summaryTail),
		TotalMessages:  len(s.messages),
	}
}

// RecentMessages returns a copy of the last n messages.
func (s *Service) RecentMessages(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lastN(s.messages, n)
}

func (s *Service) ShouldSummarize() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages) >= SummaryThreshold
}

// ApplySummary records a produced summary and prunes raw messages back to
// the memory window. Older turns leave the active context for good.
func (s *Service) ApplySummary(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries = append(s.summaries, Summary{
		Text:         text,
		Timestamp:    time.Now(),
		SessionID:    s.sessionID,
		MessageCount: len(s.messages),
	})

	if len(s.messages) > WindowSize {
		kept := make([]Message, WindowSize)
		copy(kept, s.messages[len(s.messages)-WindowSize:])
		s.messages = kept
	}
}

func (s *Service) Summaries() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, len(s.summaries))
	copy(out, s.summaries)

	return out
}

func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}

func (s *Service) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sessionID
}

func (s *Service) StartSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = fmt.Sprintf("session_%d", time.Now().UnixMilli())

	return s.sessionID
}

func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.summaries = nil
	s.sessionID = ""
}

func lastN[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[len(items)-n:]
	}

	out := make([]T, len(items))
	copy(out, items)

	return out
}
