package domain

import (
	"encoding/json"
	"math"
	"strings"
)

// JobStatus enumerates bulk generation lifecycle states.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
)

// UnmarshalJSON accepts the empty string the backend stores for "no job" as idle.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NormalizeJobStatus(raw)
	return nil
}

// NormalizeJobStatus lowercases a status and maps empty input to idle.
func NormalizeJobStatus(raw string) JobStatus {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return JobStatusIdle
	}
	return JobStatus(v)
}

// Terminal reports whether no further transition can occur from this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// ProgressState is the client-visible progress of the current bulk job.
type ProgressState struct {
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`
	Message  string    `json:"message"`
	Error    string    `json:"error,omitempty"`
}

// IdleProgress is the progress of a view with no job.
func IdleProgress() ProgressState {
	return ProgressState{Status: JobStatusIdle}
}

// QueuedProgress is entered on submission, before the first poll.
func QueuedProgress() ProgressState {
	return ProgressState{Status: JobStatusQueued, Message: "Starting job..."}
}

// Terminal reports whether the progress describes a finished job.
func (p ProgressState) Terminal() bool {
	return p.Status.Terminal()
}

// Normalized returns a copy with an explicit status and progress clamped to [0,100].
func (p ProgressState) Normalized() ProgressState {
	if p.Status == "" {
		p.Status = JobStatusIdle
	}
	p.Progress = ClampProgress(p.Progress)
	return p
}

// ClampProgress bounds a percentage to [0,100]; NaN becomes 0.
func ClampProgress(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
