package registry

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job. Beyond the fixed states below,
// each configured pipeline stage contributes one status label (for the
// default pipeline: extracting_frames, estimating_pose, editing_motion,
// generating_video, reconstructing).
type Status string

const (
	StatusQueued    Status = "queued"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// InterruptedDetail is the error detail set when jobs are failed over
// because the daemon restarted mid-pipeline.
const InterruptedDetail = "interrupted by daemon restart"

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus normalizes a status string. Stage labels are configuration,
// so any non-empty lowercase token is accepted.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	return normalized, true
}

// Job is the unit of work tracked by the registry.
//
// ID, InputLocator, and Style are immutable after Create. OutputLocator is
// write-once and set only by Complete; ErrorDetail is write-once and set
// only by Fail.
type Job struct {
	ID            string
	Status        Status
	InputLocator  string
	OutputLocator string
	ErrorDetail   string
	Style         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns an independent copy of the job record.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	return &cp
}

// Summary aggregates job counts per lifecycle bucket.
type Summary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Failed     int
}
