package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"stagetalk/app/client/provider"
	"stagetalk/app/config"
	"stagetalk/app/service/memory"
)

// maxAttempts bounds the fallback loop: the active provider plus one
// alternate, never more.
const maxAttempts = 2

// Manager orchestrates the turns of one conversation: provider
// selection, memory, summarization and fallback. One instance per
// active conversation, constructed explicitly — no shared singleton.
type Manager struct {
	cfg      *config.Config
	registry *provider.Registry
	clients  map[provider.ID]provider.Client
	memory   *memory.Service
	randInt  func(n int) int

	mu             sync.Mutex
	active         provider.ID
	turnInProgress bool
	stopped        bool
}

func NewManager(cfg *config.Config, registry *provider.Registry, clients map[provider.ID]provider.Client) *Manager {
	active := provider.ID(cfg.Providers.Default)
	if _, err := registry.Get(active); err != nil {
		active = registry.List()[0].ID
	}

	return &Manager{
		cfg:      cfg,
		registry: registry,
		clients:  clients,
		memory:   memory.New(),
		randInt:  rand.IntN,
		active:   active,
	}
}

// SetProvider switches the active backend. Returns false for an unknown
// id instead of failing: switching is a UI convenience, not
// safety-critical, but callers must check the result.
func (m *Manager) SetProvider(id string) bool {
	d, err := m.registry.Get(provider.ID(id))
	if err != nil {
		return false
	}

	m.mu.Lock()
	m.active = d.ID
	m.mu.Unlock()

	return true
}

func (m *Manager) ActiveProvider() provider.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active
}

// GenerateResponse runs one director turn: records the prompt, maybe
// summarizes, calls the active provider and records the raw response.
// On a recoverable failure it switches to a fallback provider and
// retries exactly once.
func (m *Manager) GenerateResponse(ctx context.Context, prompt string, participants []Participant, history []HistoryEntry) (string, error) {
	if err := m.beginTurn(); err != nil {
		return "", err
	}
	defer m.endTurn()

	m.memory.AddMessage(memory.RoleUser, prompt)

	memCtx := m.memory.Context()

	if m.memory.ShouldSummarize() {
		if err := m.summarizeNow(ctx); err != nil {
			slog.Warn("Summarization failed, continuing without a new summary", "error", err)
		}
	}

	directorPrompt := buildDirectorPrompt(prompt, participants, history, memCtx.Summaries)

	descriptor, err := m.registry.Get(m.ActiveProvider())
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		text, callErr := m.clients[descriptor.ID].Complete(ctx, memCtx.RecentMessages, directorPrompt, descriptor)
		if callErr == nil {
			m.memory.AddMessage(memory.RoleAssistant, text)
			return text, nil
		}

		lastErr = callErr
		if !provider.Recoverable(callErr) {
			return "", fmt.Errorf("provider call failed: %w", lastErr)
		}

		fallback, ok := m.registry.Fallback(descriptor.ID)
		if !ok {
			break
		}

		slog.Warn("Provider call failed, falling back",
			"from", descriptor.ID,
			"to", fallback.ID,
			"error", callErr,
		)

		m.mu.Lock()
		m.active = fallback.ID
		m.mu.Unlock()

		descriptor = fallback
	}

	return "", fmt.Errorf("%w: %w", ErrProvidersExhausted, lastErr)
}

func (m *Manager) summarizeNow(ctx context.Context) error {
	descriptor, err := m.registry.Get(m.ActiveProvider())
	if err != nil {
		return err
	}

	tail := m.memory.RecentMessages(summaryInputSize)

	text, err := summarize(ctx, m.clients[descriptor.ID], descriptor, tail)
	if err != nil {
		return err
	}

	m.memory.ApplySummary(text)

	return nil
}

func (m *Manager) beginTurn() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrConversationStopped
	}
	if m.turnInProgress {
		return ErrTurnInProgress
	}
	m.turnInProgress = true

	return nil
}

func (m *Manager) endTurn() {
	m.mu.Lock()
	m.turnInProgress = false
	m.mu.Unlock()
}

// Stop abandons the conversation. A pending turn still resolves, but no
// new turn will mutate memory afterwards.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *Manager) Summaries() []memory.Summary {
	return m.memory.Summaries()
}

func (m *Manager) Context() memory.Context {
	return m.memory.Context()
}

func (m *Manager) StartNewSession() string {
	return m.memory.StartSession()
}

func (m *Manager) Reset() {
	m.memory.Reset()
	m.memory.StartSession()
}
