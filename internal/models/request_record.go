package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a status change would move a record backwards
var ErrInvalidTransition = errors.New("invalid status transition")

// RequestRecord is the persisted state of one orchestrated request (requests table)
type RequestRecord struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Model        string    `db:"model" json:"model"`
	TaskType     string    `db:"task_type" json:"task_type"`
	Prompt       string    `db:"prompt" json:"prompt"`
	SystemPrompt string    `db:"system_prompt" json:"system_prompt,omitempty"`
	Response     *string   `db:"response" json:"response"`
	Status       Status    `db:"status" json:"status"`

	InputTokens  int    `db:"input_tokens" json:"input_tokens"`
	OutputTokens int    `db:"output_tokens" json:"output_tokens"`
	CostCents    int64  `db:"cost_cents" json:"cost_cents"`
	LatencyMS    *int64 `db:"latency_ms" json:"latency_ms"`

	Cached       bool    `db:"cached" json:"cached"`
	CacheKey     *string `db:"cache_key" json:"cache_key,omitempty"`
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`
	Metadata     JSONB   `db:"metadata" json:"metadata,omitempty"`
	UserID       *string `db:"user_id" json:"user_id,omitempty"`
	Attempts     int     `db:"attempts" json:"attempts"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// NewRequestRecord builds a pending record
func NewRequestRecord(taskType, model, systemPrompt, prompt string, userID *string, metadata JSONB) *RequestRecord {
	now := time.Now().UTC()
	return &RequestRecord{
		ID:           uuid.New(),
		Model:        model,
		TaskType:     taskType,
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Status:       StatusPending,
		Metadata:     metadata,
		UserID:       userID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a copy that shares no pointers with r
func (r *RequestRecord) Clone() *RequestRecord {
	c := *r
	c.Response = clonePtr(r.Response)
	c.LatencyMS = clonePtr(r.LatencyMS)
	c.CacheKey = clonePtr(r.CacheKey)
	c.ErrorMessage = clonePtr(r.ErrorMessage)
	c.UserID = clonePtr(r.UserID)
	c.StartedAt = clonePtr(r.StartedAt)
	c.CompletedAt = clonePtr(r.CompletedAt)
	c.Metadata = r.Metadata.Clone()
	return &c
}

func (r *RequestRecord) transition(next Status, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = now
	if next.IsTerminal() {
		r.CompletedAt = &now
	}
	return nil
}

// MarkProcessing moves the record into processing and counts the attempt
func (r *RequestRecord) MarkProcessing(now time.Time) error {
	if err := r.transition(StatusProcessing, now); err != nil {
		return err
	}
	r.Attempts++
	if r.StartedAt == nil {
		r.StartedAt = &now
	}
	return nil
}

// MarkCompleted stores a provider response
func (r *RequestRecord) MarkCompleted(model, response string, inputTokens, outputTokens int, costCents, latencyMS int64, now time.Time) error {
	if err := r.transition(StatusCompleted, now); err != nil {
		return err
	}
	r.Model = model
	r.Response = &response
	r.InputTokens = inputTokens
	r.OutputTokens = outputTokens
	r.CostCents = costCents
	r.LatencyMS = &latencyMS
	r.Cached = false
	r.ErrorMessage = nil
	return nil
}

// MarkCachedHit completes the record from a cached response at zero cost and latency
func (r *RequestRecord) MarkCachedHit(response, cacheKey string, now time.Time) error {
	if err := r.transition(StatusCompleted, now); err != nil {
		return err
	}
	zero := int64(0)
	r.Response = &response
	r.Cached = true
	r.CacheKey = &cacheKey
	r.CostCents = 0
	r.LatencyMS = &zero
	r.InputTokens = 0
	r.OutputTokens = 0
	r.ErrorMessage = nil
	return nil
}

// MarkFailed records a terminal failure
func (r *RequestRecord) MarkFailed(message string, now time.Time) error {
	if err := r.transition(StatusFailed, now); err != nil {
		return err
	}
	r.ErrorMessage = &message
	r.Response = nil
	return nil
}

// MarkTimedOut records that the execution deadline was exceeded
func (r *RequestRecord) MarkTimedOut(message string, now time.Time) error {
	if err := r.transition(StatusTimedOut, now); err != nil {
		return err
	}
	r.ErrorMessage = &message
	r.Response = nil
	return nil
}

// Validate checks the record invariants
func (r *RequestRecord) Validate() error {
	switch {
	case r.Model == "":
		return errors.New("model is required")
	case r.TaskType == "":
		return errors.New("task_type is required")
	case r.Prompt == "":
		return errors.New("prompt is required")
	case !r.Status.IsValid():
		return fmt.Errorf("unknown status %q", r.Status)
	case r.InputTokens < 0 || r.OutputTokens < 0 || r.CostCents < 0:
		return errors.New("token counts and cost must be non-negative")
	case r.LatencyMS != nil && *r.LatencyMS < 0:
		return errors.New("latency must be non-negative")
	case (r.Response != nil) != (r.Status == StatusCompleted):
		return errors.New("response must be set iff status is completed")
	case r.Cached && (r.CostCents != 0 || r.LatencyMS == nil || *r.LatencyMS != 0):
		return errors.New("cached records must have zero cost and latency")
	}
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
