package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAITimeout        = 60 * time.Second
	maxErrorBodyBytes    = 2048
)

// OpenAIConfig configures an OpenAI-compatible endpoint
type OpenAIConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// OpenAIProvider talks to any backend exposing the OpenAI REST surface.
// Text models use /chat/completions, speech models /audio/speech and image
// models /images/generations.
type OpenAIProvider struct {
	name    string
	auth    apiKeyAuth
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// NewOpenAIProvider creates a new OpenAI-compatible provider instance
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for provider %q", cfg.Name)
	}

	baseURL := openAIDefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = openAITimeout
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	return &OpenAIProvider{
		name:    name,
		auth:    apiKeyAuth{header: "Authorization", prefix: "Bearer ", key: cfg.APIKey},
		client:  newHTTPClient(timeout),
		baseURL: baseURL,
		timeout: timeout,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Chat dispatches the request to the endpoint matching the model's kind
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	switch KindForModel(req.Model) {
	case KindSpeech:
		return p.speech(ctx, req)
	case KindImage:
		return p.image(ctx, req)
	default:
		return p.completion(ctx, req)
	}
}

// Close cleans up resources
func (p *OpenAIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *OpenAIProvider) completion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]map[string]string, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	payload := withParams(req.Params, map[string]any{
		"model":    req.Model,
		"messages": messages,
	})

	start := time.Now()
	body, err := p.post(ctx, req.Model, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &RequestError{Model: req.Model, StatusCode: http.StatusOK, Message: "malformed completion response", Err: err}
	}
	if len(response.Choices) == 0 {
		return nil, &RequestError{Model: req.Model, StatusCode: http.StatusOK, Message: "completion response has no choices"}
	}

	usage := extractUsageFromResponse(body)
	return &ChatResponse{
		Content:      response.Choices[0].Message.Content,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		LatencyMS:    latency.Milliseconds(),
	}, nil
}

func (p *OpenAIProvider) speech(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	payload := withParams(req.Params, map[string]any{
		"model":           req.Model,
		"input":           req.Prompt,
		"voice":           "alloy",
		"response_format": "mp3",
	})
	if req.SystemPrompt != "" {
		payload["instructions"] = req.SystemPrompt
	}

	start := time.Now()
	audio, err := p.post(ctx, req.Model, "/audio/speech", payload)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Content:   dataURI("audio/mpeg", audio),
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

func (p *OpenAIProvider) image(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.Prompt
	}
	payload := withParams(req.Params, map[string]any{
		"model":  req.Model,
		"prompt": prompt,
		"n":      1,
	})

	start := time.Now()
	body, err := p.post(ctx, req.Model, "/images/generations", payload)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	var response struct {
		Data []struct {
			URL     string `json:"url"`
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &RequestError{Model: req.Model, StatusCode: http.StatusOK, Message: "malformed image response", Err: err}
	}
	if len(response.Data) == 0 {
		return nil, &RequestError{Model: req.Model, StatusCode: http.StatusOK, Message: "image response has no data"}
	}

	content := response.Data[0].URL
	if content == "" {
		content = "data:image/png;base64," + response.Data[0].B64JSON
	}
	return &ChatResponse{Content: content, LatencyMS: latency.Milliseconds()}, nil
}

// post sends a JSON body and returns the raw 2xx response body
func (p *OpenAIProvider) post(ctx context.Context, model, path string, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &RequestError{Model: model, Message: "failed to marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Model: model, Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.auth.apply(httpReq)

	return doRequest(p.client, httpReq, model, p.timeout)
}

// UsageInfo contains token usage reported by the backend
type UsageInfo struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// extractUsageFromResponse reads token usage, accepting both the responses
// API field names and the chat-completions ones
func extractUsageFromResponse(body []byte) *UsageInfo {
	var response struct {
		Usage struct {
			InputTokens      int `json:"input_tokens"`
			OutputTokens     int `json:"output_tokens"`
			TotalTokens      int `json:"total_tokens"`
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return &UsageInfo{}
	}

	usage := &UsageInfo{
		InputTokens:  response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
		TotalTokens:  response.Usage.TotalTokens,
	}
	if usage.InputTokens == 0 && response.Usage.PromptTokens > 0 {
		usage.InputTokens = response.Usage.PromptTokens
	}
	if usage.OutputTokens == 0 && response.Usage.CompletionTokens > 0 {
		usage.OutputTokens = response.Usage.CompletionTokens
	}

	return usage
}

// apiKeyAuth sets a static API key header on outgoing requests
type apiKeyAuth struct {
	header string
	prefix string
	key    string
}

func (a apiKeyAuth) apply(req *http.Request) {
	req.Header.Set(a.header, a.prefix+a.key)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// doRequest executes req and maps transport failures and non-2xx statuses
// to TimeoutError and RequestError
func doRequest(client *http.Client, req *http.Request, model string, timeout time.Duration) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(model, timeout, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(model, timeout, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := respBody
		if len(msg) > maxErrorBodyBytes {
			msg = msg[:maxErrorBodyBytes]
		}
		return nil, &RequestError{Model: model, StatusCode: resp.StatusCode, Message: string(msg)}
	}

	return respBody, nil
}

// withParams overlays caller params on a base payload without replacing base keys
func withParams(params map[string]any, base map[string]any) map[string]any {
	out := make(map[string]any, len(params)+len(base))
	for k, v := range params {
		out[k] = v
	}
	for k, v := range base {
		if _, ok := out[k]; ok && k != "model" && k != "messages" && k != "prompt" && k != "input" {
			continue
		}
		out[k] = v
	}
	return out
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
