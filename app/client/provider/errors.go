package provider

import (
	"errors"
	"fmt"
)

var ErrUnknownProvider = errors.New("unknown provider")

// AuthError is a credential or configuration problem (401/403). It drives
// fallback but will not heal on retry against the same provider.
type AuthError struct {
	Provider   ID
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: auth rejected (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// TransientError is a rate limit, server-side failure or timeout.
// StatusCode is zero when no HTTP response was received.
type TransientError struct {
	Provider   ID
	StatusCode int
	Body       string
}

func (e *TransientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: transient failure: %s", e.Provider, e.Body)
	}

	return fmt.Sprintf("%s: transient failure (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// FormatError means the provider answered 2xx but the body did not carry
// the expected completion text.
type FormatError struct {
	Provider ID
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: unexpected response format: %s", e.Provider, e.Reason)
}

// HTTPError carries any remaining non-2xx status outside the auth and
// transient classes.
type HTTPError struct {
	Provider   ID
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: http status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(provider ID, status int, body string) error {
	switch {
	case status == 401 || status == 403:
		return &AuthError{Provider: provider, StatusCode: status, Body: body}
	case status == 429 || status >= 500:
		return &TransientError{Provider: provider, StatusCode: status, Body: body}
	default:
		return &HTTPError{Provider: provider, StatusCode: status, Body: body}
	}
}

// Recoverable reports whether switching to another provider may help.
// Format errors count: a different backend usually answers in shape.
func Recoverable(err error) bool {
	var (
		authErr      *AuthError
		transientErr *TransientError
		formatErr    *FormatError
	)

	return errors.As(err, &authErr) || errors.As(err, &transientErr) || errors.As(err, &formatErr)
}
