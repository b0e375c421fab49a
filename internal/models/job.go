package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job is one unit of async work referencing a request record
type Job struct {
	RequestID  uuid.UUID      `json:"request_id"`
	TaskType   string         `json:"task_type"`
	UserID     string         `json:"user_id,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Attempt    int            `json:"attempt"`
	EnqueuedAt time.Time      `json:"enqueued_at"`

	// DecodeError and Raw are set when a queued payload could not be decoded
	DecodeError string `json:"-"`
	Raw         string `json:"-"`
}

// NewJob creates a job for a record
func NewJob(rec *RequestRecord, params map[string]any) *Job {
	job := &Job{
		RequestID:  rec.ID,
		TaskType:   rec.TaskType,
		Params:     params,
		EnqueuedAt: time.Now().UTC(),
	}
	if rec.UserID != nil {
		job.UserID = *rec.UserID
	}
	return job
}

// Validate reports malformed jobs. These are never retried.
func (j *Job) Validate() error {
	if j.DecodeError != "" {
		return errors.New("undecodable job payload: " + j.DecodeError)
	}
	if j.RequestID == uuid.Nil {
		return errors.New("job has no request id")
	}
	if j.TaskType == "" {
		return errors.New("job has no task type")
	}
	return nil
}
