package api

import "reframe/internal/registry"

// StatusDocument is the wire representation of a job's state. Message is
// present only for failed jobs and ProcessedVideo only for completed ones.
type StatusDocument struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	OriginalVideo  string `json:"original_video"`
	ProcessedVideo string `json:"processed_video,omitempty"`
}

// FromJob projects a registry snapshot into its wire representation.
func FromJob(job *registry.Job) StatusDocument {
	doc := StatusDocument{
		JobID:         job.ID,
		Status:        string(job.Status),
		OriginalVideo: job.InputLocator,
	}
	switch job.Status {
	case registry.StatusFailed:
		doc.Message = job.ErrorDetail
	case registry.StatusCompleted:
		doc.ProcessedVideo = job.OutputLocator
	}
	return doc
}

// SubmitResponse is returned by a successful submission. The document it
// embeds always carries the queued status.
type SubmitResponse struct {
	StatusDocument
	Style string `json:"style"`
}

// HealthDocument reports daemon liveness and pipeline readiness.
type HealthDocument struct {
	Status   string   `json:"status"`
	Ready    bool     `json:"ready"`
	InFlight int      `json:"in_flight"`
	Capacity int      `json:"capacity"`
	Stages   []string `json:"degraded_stages,omitempty"`
}
