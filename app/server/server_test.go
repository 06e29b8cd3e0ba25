package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagetalk/app/client/provider"
	"stagetalk/app/config"
	"stagetalk/app/service/conversation"
	"stagetalk/app/service/memory"
	"stagetalk/app/service/queue"
	"stagetalk/app/service/quota"
	"stagetalk/app/service/store"
)

type stubClient struct {
	text string
	err  error
}

func (c *stubClient) Complete(_ context.Context, _ []memory.Message, _ string, _ provider.Descriptor) (string, error) {
	return c.text, c.err
}

func stubClients(client provider.Client) map[provider.ID]provider.Client {
	return map[provider.ID]provider.Client{
		provider.OpenAI:   client,
		provider.Together: client,
		provider.Gemini:   client,
	}
}

func newTestServer(t *testing.T, clients map[provider.ID]provider.Client) (*Server, *do.Injector) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Providers.OpenAI.Token = "k1"
	cfg.Providers.Together.Token = "k2"
	cfg.Providers.Gemini.Token = "k3"
	cfg.ApplyDefaults()
	cfg.DataDir = t.TempDir()
	cfg.Quota.DailyLimit = 3
	cfg.Quota.MinIntervalSeconds = 0
	cfg.Server.AdminToken = "sekrit"

	di := do.New()
	t.Cleanup(func() { _ = di.Shutdown() })

	do.ProvideValue(di, cfg)
	do.ProvideValue(di, provider.NewRegistry(cfg))
	do.ProvideValue(di, clients)
	do.Provide(di, quota.New)
	do.Provide(di, store.New)
	do.Provide(di, queue.New)
	do.Provide(di, New)

	return do.MustInvoke[*Server](di), di
}

func postJSON(t *testing.T, s *Server, path, userID string, payload any) (int, []byte) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

var rosterPayload = map[string]any{
	"prompt": "talk about tea",
	"participants": []conversation.Participant{
		{Name: "Alice", Identity: "a curious student"},
		{Name: "Bob", Identity: "a grumpy teacher"},
	},
}

func TestCall_RequiresUser(t *testing.T) {
	s, _ := newTestServer(t, stubClients(&stubClient{text: "Alice: hi"}))

	status, _ := postJSON(t, s, "/api/ai/call", "", rosterPayload)
	assert.Equal(t, 401, status)
}

func TestCall_HappyPath(t *testing.T) {
	s, _ := newTestServer(t, stubClients(&stubClient{text: "Alice: hi there"}))

	status, body := postJSON(t, s, "/api/ai/call", "user1", rosterPayload)
	require.Equal(t, 200, status, string(body))

	var resp callResponse
	require.NoError(t, json.Unmarshal(body, &resp))

	assert.Equal(t, "Alice: hi there", resp.Response)
	assert.Equal(t, "Alice", resp.Speaker)
	assert.Equal(t, "hi there", resp.Message)
	assert.Equal(t, "together", resp.Provider)
	assert.Equal(t, 1, resp.QuotaUsed)
	assert.Equal(t, 3, resp.QuotaLimit)
}

func TestCall_PersistsTurn(t *testing.T) {
	s, di := newTestServer(t, stubClients(&stubClient{text: "Bob: noted"}))

	status, _ := postJSON(t, s, "/api/ai/call", "user1", rosterPayload)
	require.Equal(t, 200, status)

	turns, err := do.MustInvoke[*store.Service](di).History("user1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "Bob", turns[0].Speaker)
	assert.Equal(t, "noted", turns[0].Response)
	assert.Equal(t, "together", turns[0].Provider)
}

func TestCall_QuotaExhausted(t *testing.T) {
	s, _ := newTestServer(t, stubClients(&stubClient{text: "Alice: hi"}))

	for i := 0; i < 3; i++ {
		status, _ := postJSON(t, s, "/api/ai/call", "user1", rosterPayload)
		require.Equal(t, 200, status)
	}

	status, _ := postJSON(t, s, "/api/ai/call", "user1", rosterPayload)
	assert.Equal(t, 429, status)
}

func TestCall_ProvidersExhausted(t *testing.T) {
	failing := &stubClient{err: &provider.TransientError{Provider: provider.Together, StatusCode: 503}}
	s, _ := newTestServer(t, stubClients(failing))

	status, _ := postJSON(t, s, "/api/ai/call", "user1", rosterPayload)
	assert.Equal(t, 502, status)
}

func TestCall_MissingPrompt(t *testing.T) {
	s, _ := newTestServer(t, stubClients(&stubClient{text: "Alice: hi"}))

	status, _ := postJSON(t, s, "/api/ai/call", "user1", map[string]any{"prompt": ""})
	assert.Equal(t, 400, status)
}

func TestSetProvider(t *testing.T) {
	s, _ := newTestServer(t, stubClients(&stubClient{text: "Alice: hi"}))

	status, _ := postJSON(t, s, "/api/ai/provider", "user1", map[string]any{"provider": "gemini"})
	assert.Equal(t, 200, status)

	status, _ = postJSON(t, s, "/api/ai/provider", "user1", map[string]any{"provider": "claude"})
	assert.Equal(t, 400, status)
}

func TestStartConversation_Enqueues(t *testing.T) {
	s, di := newTestServer(t, stubClients(&stubClient{text: "Alice: hi"}))

	status, _ := postJSON(t, s, "/api/conversations", "user1", map[string]any{
		"scene": "a tea tasting",
		"participants": []conversation.Participant{
			{Name: "Alice", Identity: "a curious student"},
		},
		"turns": 5,
	})
	require.Equal(t, 202, status)

	select {
	case req := <-do.MustInvoke[*queue.Service](di).Channel():
		assert.Equal(t, "user1", req.UserID)
		assert.Equal(t, "a tea tasting", req.Scene)
		assert.Equal(t, 5, req.Turns)
	default:
		t.Fatal("expected a queued conversation request")
	}
}

func TestAdminStats(t *testing.T) {
	s, _ := newTestServer(t, stubClients(&stubClient{text: "Alice: hi"}))

	req := httptest.NewRequest("GET", "/api/admin/stats", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/admin/stats", nil)
	req.Header.Set("X-Admin-Token", "sekrit")
	resp, err = s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var stats quota.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Zero(t, stats.TotalUsers)
}

func TestSummariesAndReset(t *testing.T) {
	s, _ := newTestServer(t, stubClients(&stubClient{text: "Alice: hi"}))

	status, _ := postJSON(t, s, "/api/ai/call", "user1", rosterPayload)
	require.Equal(t, 200, status)

	req := httptest.NewRequest("GET", "/api/ai/summaries", nil)
	req.Header.Set(userHeader, "user1")
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	status, _ = postJSON(t, s, "/api/ai/reset", "user1", nil)
	assert.Equal(t, 200, status)
	assert.Zero(t, s.manager("user1").Context().TotalMessages)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, stubClients(&stubClient{text: "ok"}))

	resp, err := s.app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
