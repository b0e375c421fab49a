package catalog

import (
	"time"

	"ai_orchestrator/internal/models"
)

// DefaultTTL applies to task types without a TTL entry
const DefaultTTL = time.Hour

// Defaults returns the compiled-in tables
func Defaults() Tables {
	t := Tables{
		Routes: map[string]models.RouteEntry{
			"quick_grading": {
				PrimaryModel:       "gpt-5.1-codex-mini",
				FallbackModel:      "gpt-5.2",
				RateLimitPerMinute: 60,
				DefaultParams:      map[string]any{"temperature": 0.0, "max_tokens": 500},
			},
			"deep_grading": {
				PrimaryModel:       "gpt-5.2",
				FallbackModel:      "claude-sonnet-4.5",
				RateLimitPerMinute: 30,
				DefaultParams:      map[string]any{"temperature": 0.2, "max_tokens": 2000},
			},
			"gap_analysis": {
				PrimaryModel:       "gpt-5.2",
				FallbackModel:      "claude-sonnet-4.5",
				RateLimitPerMinute: 20,
				DefaultParams:      map[string]any{"temperature": 0.2, "max_tokens": 2000},
			},
			"route_generation": {
				PrimaryModel:       "claude-sonnet-4.5",
				FallbackModel:      "gpt-5.2",
				RateLimitPerMinute: 20,
				DefaultParams:      map[string]any{"temperature": 0.7, "max_tokens": 4000},
			},
			"content_generation": {
				PrimaryModel:       "gpt-5.2",
				FallbackModel:      "claude-sonnet-4.5",
				RateLimitPerMinute: 30,
				DefaultParams:      map[string]any{"temperature": 0.7, "max_tokens": 3000},
			},
			"summarization": {
				PrimaryModel:       "gemini-2.5-flash",
				FallbackModel:      "gpt-5.1-codex-mini",
				RateLimitPerMinute: 60,
				DefaultParams:      map[string]any{"temperature": 0.3, "max_tokens": 800},
			},
			"chat_assist": {
				PrimaryModel:       "gpt-5.1-codex-mini",
				FallbackModel:      "gemini-2.5-flash",
				RateLimitPerMinute: 120,
				DefaultParams:      map[string]any{"temperature": 0.5, "max_tokens": 1000},
			},
			"narration": {
				PrimaryModel:       "gpt-4o-mini-tts",
				FallbackModel:      "eleven_multilingual_v2",
				RateLimitPerMinute: 30,
				DefaultParams:      map[string]any{"voice": "alloy", "format": "mp3"},
			},
			"image_generation": {
				PrimaryModel:       "nanobanana-pro",
				FallbackModel:      "gpt-image-1",
				RateLimitPerMinute: 10,
				DefaultParams:      map[string]any{"size": "1024x1024"},
			},
		},
		TTLs: map[string]time.Duration{
			"route_generation":   24 * time.Hour,
			"content_generation": 6 * time.Hour,
			"summarization":      12 * time.Hour,
			"chat_assist":        0,
			"narration":          7 * 24 * time.Hour,
			"image_generation":   7 * 24 * time.Hour,
		},
		// grading output depends on the submitted answer, so it is never reused
		NonCacheable: []string{"quick_grading", "deep_grading", "gap_analysis"},
		Pricing: map[string]models.ModelPricing{
			"gpt-5.1-codex-mini":     {Unit: models.PricingUnitToken, InputRate: 25, OutputRate: 200},
			"gpt-5.2":                {Unit: models.PricingUnitToken, InputRate: 175, OutputRate: 1400},
			"claude-sonnet-4.5":      {Unit: models.PricingUnitToken, InputRate: 300, OutputRate: 1500},
			"gemini-2.5-flash":       {Unit: models.PricingUnitToken, InputRate: 30, OutputRate: 250},
			"gpt-4o-mini-tts":        {Unit: models.PricingUnitAudio, FlatRate: 2},
			"eleven_multilingual_v2": {Unit: models.PricingUnitAudio, FlatRate: 5},
			"nanobanana-pro":         {Unit: models.PricingUnitImage, FlatRate: 10},
			"gpt-image-1":            {Unit: models.PricingUnitImage, FlatRate: 8},
		},
		Prompts: map[string]PromptTemplate{
			"quick_grading": {
				System: "You are a strict but fair grader. Reply with JSON {\"score\": 0-100, \"feedback\": string}.",
				User:   "Question:\n{{.question}}\n\nExpected answer:\n{{.expected}}\n\nStudent answer:\n{{.answer}}",
				Format: "json",
			},
			"deep_grading": {
				System: "You are an expert grader. Reply with JSON {\"score\": 0-100, \"rubric\": [{\"criterion\": string, \"points\": number, \"comment\": string}], \"feedback\": string}.",
				User:   "Rubric:\n{{.rubric}}\n\nQuestion:\n{{.question}}\n\nStudent answer:\n{{.answer}}",
				Format: "json",
			},
			"gap_analysis": {
				System: "You identify knowledge gaps. Reply with JSON {\"gaps\": [{\"topic\": string, \"severity\": \"low\"|\"medium\"|\"high\"}]}.",
				User:   "Learner history:\n{{.history}}\n\nTarget skills:\n{{.skills}}",
				Format: "json",
			},
			"route_generation": {
				System: "You design learning routes. Reply with JSON {\"steps\": [{\"title\": string, \"objective\": string}]}.",
				User:   "Goal: {{.goal}}\nLevel: {{.level}}\nAvailable hours per week: {{.hours}}",
				Format: "json",
			},
			"content_generation": {
				System: "You write clear study material in Markdown.",
				User:   "Write a lesson about {{.topic}} for a {{.level}} learner.",
				Format: "markdown",
			},
			"summarization": {
				System: "Summarize the text in plain prose.",
				User:   "{{.text}}",
				Format: "text",
			},
			"chat_assist": {
				System: "You are a helpful study assistant.",
				User:   "{{.message}}",
				Format: "markdown",
			},
			"narration": {
				User:   "{{.script}}",
				Format: "text",
			},
			"image_generation": {
				User:   "{{.description}}",
				Format: "text",
			},
		},
		ModelParams: map[string]map[string]any{
			"gpt-5.2":            {"reasoning_effort": "medium"},
			"gpt-5.1-codex-mini": {"reasoning_effort": "low"},
		},
	}
	t.normalize()
	return t
}
