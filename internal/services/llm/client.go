package llm

import (
	"context"
	"errors"
	"fmt"
)

// Completion is a single non-streaming chat request.
type Completion struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client is implemented by each model provider. Complete returns the raw text
// of the first choice; an empty string means the provider sent no content.
type Client interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Completion) (string, error)
}

// ErrorKind classifies provider failures.
type ErrorKind int

const (
	// KindService covers transport failures and provider-side errors not caused by the request.
	KindService ErrorKind = iota
	// KindRateLimited means the provider throttled the call.
	KindRateLimited
	// KindRequest means the provider rejected the request itself.
	KindRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindRequest:
		return "request"
	default:
		return "service"
	}
}

// ProviderError is returned by Client implementations for classified failures.
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error (HTTP %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s error: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrMissingCredential is returned by constructors when no API key is configured.
var ErrMissingCredential = errors.New("llm: API key is not configured")

// IsRateLimited reports whether err is a provider throttling error.
func IsRateLimited(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Kind == KindRateLimited
}

// kindForStatus maps an HTTP status from a provider API error to an ErrorKind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status >= 400 && status < 500:
		return KindRequest
	default:
		return KindService
	}
}
