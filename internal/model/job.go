package model

import "time"

// Job represents a composition job in the system. A job starts processing
// immediately on accept and moves exactly once into a terminal state; the
// record is deleted only by the retention sweep, never by request handling.
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`

	// OutputPath is set by the completion transition and consumed by the
	// download path and the retention sweep. InputPaths are the resolved
	// source files, kept for deferred input cleanup.
	OutputPath string   `json:"-"`
	InputPaths []string `json:"-"`
}

// Clone returns a deep copy so readers never share pointers with the
// stored record.
func (j *Job) Clone() *Job {
	c := *j
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.FailedAt != nil {
		t := *j.FailedAt
		c.FailedAt = &t
	}
	if j.InputPaths != nil {
		c.InputPaths = append([]string(nil), j.InputPaths...)
	}
	return &c
}

// TerminalAt returns the timestamp of the terminal transition, or the zero
// time while the job is still processing.
func (j *Job) TerminalAt() time.Time {
	if j.CompletedAt != nil {
		return *j.CompletedAt
	}
	if j.FailedAt != nil {
		return *j.FailedAt
	}
	return time.Time{}
}
