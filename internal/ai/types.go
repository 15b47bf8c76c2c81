package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Request is one classification call for a single page image.
type Request struct {
	PageID       string
	Model        string
	Image        []byte
	ImageMIME    string // image/jpeg
	SystemPrompt string
	UserPrompt   string
	Timeout      time.Duration
}

type Response struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Client interface for providers like OpenAI, Anthropic, Gemini.
type Client interface {
	Name() string
	Do(ctx context.Context, req Request) (Response, error)
}

var (
	ErrRateLimited       = errors.New("rate_limited")
	ErrEmptyResponse     = errors.New("empty response")
	ErrMalformedResponse = errors.New("malformed response")
	ErrMissingAPIKey     = errors.New("missing api key")
)

// HTTPError represents a non-2xx status from a provider.
type HTTPError struct {
	StatusCode int
	Body       string
	Provider   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Provider, e.Body)
}

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
