package ai

import (
	"fmt"
	"strings"
)

// Keys holds provider credentials.
type Keys struct {
	OpenAI    string
	Anthropic string
	Gemini    string
}

// NewClient returns the provider for engine ("gemini", "openai" or "anthropic").
func NewClient(engine string, keys Keys) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "gemini", "google":
		return NewGeminiClient(keys.Gemini), nil
	case "openai":
		return NewOpenAIClient(keys.OpenAI), nil
	case "anthropic", "claude":
		return NewAnthropicClient(keys.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown oracle engine %q", engine)
	}
}
