package models

import "time"

// EvaluationResult is produced once per invocation and never persisted.
type EvaluationResult struct {
	ID                string        `json:"id"`
	Gate              string        `json:"gate,omitempty"`
	Count             int64         `json:"count"`
	Threshold         int64         `json:"threshold"`
	Comparison        Comparison    `json:"comparison"`
	ThresholdExceeded bool          `json:"thresholdExceeded"`
	Message           string        `json:"message,omitempty"`
	URL               string        `json:"url"`
	SearchURL         string        `json:"searchUrl"`
	Indexes           string        `json:"indexes"`
	Since             time.Time     `json:"since"`
	Content           string        `json:"content"`
	Duration          time.Duration `json:"duration"`
}

// Err returns a *ThresholdExceededError when the gate tripped.
func (r *EvaluationResult) Err() error {
	if r == nil || !r.ThresholdExceeded {
		return nil
	}
	return &ThresholdExceededError{Result: r}
}
