package providers

import (
	"context"
	"strings"
)

// ChatRequest is a provider-agnostic generation request
type ChatRequest struct {
	Model        string
	Prompt       string
	SystemPrompt string
	Params       map[string]any
}

// ChatResponse is a normalized provider response
type ChatResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	LatencyMS    int64
}

// Provider is implemented by each backend family. Errors are *TimeoutError or *RequestError.
type Provider interface {
	// Name returns the display name of this provider
	Name() string

	// Chat sends one generation request
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Close performs cleanup when the provider is no longer needed
	Close() error
}

// Kind is the kind of output a model produces
type Kind string

const (
	KindText   Kind = "text"
	KindSpeech Kind = "speech"
	KindImage  Kind = "image"
)

// KindForModel infers the output kind from the model name
func KindForModel(model string) Kind {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "tts"), strings.HasPrefix(m, "eleven_"):
		return KindSpeech
	case strings.Contains(m, "image"), strings.HasPrefix(m, "nanobanana"), strings.HasPrefix(m, "dall-e"):
		return KindImage
	default:
		return KindText
	}
}
