package model

import "time"

// ComposeRequest represents a request to compose two uploaded files
type ComposeRequest struct {
	InputA           string                   `json:"inputA" validate:"required"`
	InputB           string                   `json:"inputB" validate:"required"`
	Layout           string                   `json:"layout"`
	PerInputSettings map[string]InputSettings `json:"perInputSettings"`
	AudioMixPolicy   string                   `json:"audioMixPolicy" validate:"omitempty,oneof=shortest longest"`
}

// InputSettings overrides the target dimensions for one input. Keys in
// PerInputSettings are "inputA" and "inputB". Zero values mean no override;
// negative values are rejected when the filter graph is built.
type InputSettings struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Per-input settings keys
const (
	SettingsKeyInputA = "inputA"
	SettingsKeyInputB = "inputB"
)

// ComposeStartResponse is returned immediately when a job is accepted
type ComposeStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ComposeStatusResponse is the visible snapshot of a job
type ComposeStatusResponse struct {
	JobID       string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Error       *string    `json:"error,omitempty"`
	OutputURL   string     `json:"outputUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
}

// ComposeResult is pushed over the websocket when a job completes
type ComposeResult struct {
	JobID     string `json:"jobId"`
	OutputURL string `json:"outputUrl"`
}

// ComposeDownloadURL returns the download route for a completed job.
func ComposeDownloadURL(jobID string) string {
	return "/api/compose/download/" + jobID
}
