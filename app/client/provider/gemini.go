package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stagetalk/app/config"
	"stagetalk/app/service/memory"
)

// GeminiClient speaks the generateContent format: no role-tagged message
// array, a single contents block embeds the history as labeled text.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	timeout    time.Duration
}

func NewGeminiClient(cfg config.ModelConfig, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: timeout,
	}
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) Complete(ctx context.Context, history []memory.Message, prompt string, d Descriptor) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: buildGeminiPrompt(history, prompt)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     d.Temperature,
			MaxOutputTokens: d.MaxOutputTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, d.Model, c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransientError{Provider: d.ID, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransientError{Provider: d.ID, Body: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyStatus(d.ID, resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err = json.Unmarshal(respBody, &parsed); err != nil {
		return "", &FormatError{Provider: d.ID, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &FormatError{Provider: d.ID, Reason: "no candidate text"}
	}

	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}

func buildGeminiPrompt(history []memory.Message, prompt string) string {
	var builder strings.Builder

	if len(history) > 0 {
		builder.WriteString("Previous conversation:\n")

		for _, msg := range history {
			label := "AI"
			if msg.Role == memory.RoleUser {
				label = "User"
			}

			builder.WriteString(fmt.Sprintf("%s: %s\n", label, msg.Content))
		}

		builder.WriteString("\n")
	}

	builder.WriteString("Current message: ")
	builder.WriteString(prompt)

	return builder.String()
}
