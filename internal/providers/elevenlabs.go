package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io/v1"
	elevenLabsDefaultVoice   = "21m00Tcm4TlvDq8ikWAM"
)

// ElevenLabsProvider synthesizes speech through the ElevenLabs API
type ElevenLabsProvider struct {
	name    string
	auth    apiKeyAuth
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// NewElevenLabsProvider creates a text-to-speech provider
func NewElevenLabsProvider(cfg OpenAIConfig) (*ElevenLabsProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for provider %q", cfg.Name)
	}

	baseURL := elevenLabsDefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = openAITimeout
	}
	name := cfg.Name
	if name == "" {
		name = "elevenlabs"
	}

	return &ElevenLabsProvider{
		name:    name,
		auth:    apiKeyAuth{header: "xi-api-key", key: cfg.APIKey},
		client:  newHTTPClient(timeout),
		baseURL: baseURL,
		timeout: timeout,
	}, nil
}

// Name returns the provider name
func (p *ElevenLabsProvider) Name() string {
	return p.name
}

// Chat converts the prompt to speech. The "voice_id" and "output_format"
// params select the voice and encoding; everything else is sent as voice settings.
func (p *ElevenLabsProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	voice := elevenLabsDefaultVoice
	format := "mp3_44100_128"
	settings := make(map[string]any)
	for k, v := range req.Params {
		switch k {
		case "voice_id":
			if s, ok := v.(string); ok && s != "" {
				voice = s
			}
		case "output_format":
			if s, ok := v.(string); ok && s != "" {
				format = s
			}
		default:
			settings[k] = v
		}
	}

	payload := map[string]any{
		"text":     req.Prompt,
		"model_id": req.Model,
	}
	if len(settings) > 0 {
		payload["voice_settings"] = settings
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &RequestError{Model: req.Model, Message: "failed to marshal request", Err: err}
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", p.baseURL, url.PathEscape(voice), url.QueryEscape(format))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Model: req.Model, Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	p.auth.apply(httpReq)

	start := time.Now()
	audio, err := doRequest(p.client, httpReq, req.Model, p.timeout)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Content:   dataURI("audio/mpeg", audio),
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

// Close cleans up resources
func (p *ElevenLabsProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
