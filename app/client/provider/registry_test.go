package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagetalk/app/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Providers.OpenAI.Token = "k1"
	cfg.Providers.Together.Token = "k2"
	cfg.Providers.Gemini.Token = "k3"
	cfg.ApplyDefaults()

	return cfg
}

func TestRegistry_Get(t *testing.T) {
	reg := NewRegistry(testConfig())

	d, err := reg.Get(Together)
	require.NoError(t, err)
	assert.Equal(t, "Together AI", d.DisplayName)
	assert.Equal(t, "meta-llama/Llama-3.1-70B-Instruct-Turbo", d.Model)
	assert.Equal(t, 4000, d.MaxOutputTokens)
	assert.InDelta(t, 0.7, d.Temperature, 0.001)
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := NewRegistry(testConfig())

	_, err := reg.Get("claude")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistry_List(t *testing.T) {
	reg := NewRegistry(testConfig())

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, OpenAI, list[0].ID)
	assert.Equal(t, Together, list[1].ID)
	assert.Equal(t, Gemini, list[2].ID)
}

func TestRegistry_Fallback(t *testing.T) {
	reg := NewRegistry(testConfig())

	for _, id := range []ID{OpenAI, Together, Gemini} {
		fb, ok := reg.Fallback(id)
		require.True(t, ok)
		assert.NotEqual(t, id, fb.ID)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "401 is auth",
			status: 401,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				require.True(t, errors.As(err, &authErr))
				assert.Equal(t, 401, authErr.StatusCode)
			},
		},
		{
			name:   "403 is auth",
			status: 403,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				assert.True(t, errors.As(err, &authErr))
			},
		},
		{
			name:   "429 is transient",
			status: 429,
			check: func(t *testing.T, err error) {
				var transientErr *TransientError
				assert.True(t, errors.As(err, &transientErr))
			},
		},
		{
			name:   "503 is transient",
			status: 503,
			check: func(t *testing.T, err error) {
				var transientErr *TransientError
				assert.True(t, errors.As(err, &transientErr))
			},
		},
		{
			name:   "400 is plain http",
			status: 400,
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.True(t, errors.As(err, &httpErr))
				assert.False(t, Recoverable(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, classifyStatus(OpenAI, tt.status, "body"))
		})
	}
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(&AuthError{Provider: OpenAI, StatusCode: 401}))
	assert.True(t, Recoverable(&TransientError{Provider: OpenAI, StatusCode: 429}))
	assert.True(t, Recoverable(&FormatError{Provider: OpenAI, Reason: "empty"}))
	assert.False(t, Recoverable(&HTTPError{Provider: OpenAI, StatusCode: 400}))
	assert.False(t, Recoverable(errors.New("something else")))
}
