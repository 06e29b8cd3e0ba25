package provider

import (
	"context"

	"stagetalk/app/config"
	"stagetalk/app/service/memory"
)

// Client is the uniform completion contract every backend implements.
// History must already be truncated to the memory window by the caller;
// clients never retry, fallback lives in the orchestrator.
type Client interface {
	Complete(ctx context.Context, history []memory.Message, prompt string, d Descriptor) (string, error)
}

// NewClients builds one client per registered backend. OpenAI and
// Together speak the same chat-completions dialect and share an
// implementation; Gemini has its own wire format.
func NewClients(cfg *config.Config) map[ID]Client {
	return map[ID]Client{
		OpenAI:   NewChatClient(cfg.Providers.OpenAI, cfg.Providers.Timeout()),
		Together: NewChatClient(cfg.Providers.Together, cfg.Providers.Timeout()),
		Gemini:   NewGeminiClient(cfg.Providers.Gemini, cfg.Providers.Timeout()),
	}
}
