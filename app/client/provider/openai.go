package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"stagetalk/app/config"
	"stagetalk/app/service/memory"
)

// ChatClient talks the OpenAI chat-completions dialect. Together AI is
// wire-compatible, so both backends use this client with different base
// urls.
type ChatClient struct {
	client  *openai.Client
	timeout time.Duration
}

func NewChatClient(cfg config.ModelConfig, timeout time.Duration) *ChatClient {
	clientConfig := openai.DefaultConfig(cfg.Token)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: timeout,
	}

	return &ChatClient{
		client:  openai.NewClientWithConfig(clientConfig),
		timeout: timeout,
	}
}

func (c *ChatClient) Complete(ctx context.Context, history []memory.Message, prompt string, d Descriptor) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:               d.Model,
			Messages:            messages,
			MaxCompletionTokens: d.MaxOutputTokens,
			Temperature:         d.Temperature,
		},
	)
	if err != nil {
		return "", classifyChatError(d.ID, err)
	}

	if len(resp.Choices) == 0 {
		return "", &FormatError{Provider: d.ID, Reason: "no completion choices"}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyChatError(provider ID, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(provider, apiErr.HTTPStatusCode, apiErr.Message)
	}

	// timeouts and connection failures count as transient for fallback
	return &TransientError{Provider: provider, Body: err.Error()}
}
