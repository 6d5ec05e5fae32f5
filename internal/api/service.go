package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"log/slog"

	"github.com/google/uuid"

	"reframe/internal/blobstore"
	"reframe/internal/config"
	"reframe/internal/logging"
	"reframe/internal/orchestrator"
	"reframe/internal/registry"
	"reframe/internal/telemetry"
)

// ErrEmptyUpload is returned when a submission carries no file content.
var ErrEmptyUpload = errors.New("upload must not be empty")

// Service handles submissions and status queries against the registry.
type Service struct {
	cfg    *config.Config
	store  *registry.Store
	blobs  *blobstore.Store
	orch   *orchestrator.Manager
	logger *slog.Logger
}

// NewService constructs the API service.
func NewService(cfg *config.Config, store *registry.Store, blobs *blobstore.Store, orch *orchestrator.Manager, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		blobs:  blobs,
		orch:   orch,
		logger: logging.NewComponentLogger(logger, "api"),
	}
}

// Submit stores the upload, registers the job, and dispatches it into the
// pipeline. The call returns as soon as the job is queued; processing
// happens asynchronously. A failed submission leaves no job behind.
func (s *Service) Submit(ctx context.Context, upload io.Reader, filename, style string) (SubmitResponse, error) {
	if upload == nil {
		return SubmitResponse{}, ErrEmptyUpload
	}
	style = strings.ToLower(strings.TrimSpace(style))
	if style == "" {
		style = s.cfg.Pipeline.DefaultStyle
	}

	id := uuid.NewString()
	locator, err := s.blobs.PutUpload(upload, id, filename)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("store upload: %w", err)
	}

	job, err := s.store.Create(ctx, id, locator, style)
	if err != nil {
		s.discardUpload(locator)
		return SubmitResponse{}, fmt.Errorf("register job: %w", err)
	}

	if err := s.orch.Dispatch(id); err != nil {
		if failErr := s.store.Fail(ctx, id, "daemon is shutting down"); failErr != nil {
			s.logger.Error("failed to settle undispatchable job", logging.Error(failErr))
		}
		return SubmitResponse{}, fmt.Errorf("dispatch job: %w", err)
	}

	telemetry.JobsSubmitted.Inc()
	s.logger.Info("job submitted",
		logging.String(logging.FieldJobID, id),
		logging.String("style", style),
		logging.String("input", locator),
	)
	return SubmitResponse{StatusDocument: FromJob(job), Style: style}, nil
}

// Status returns the wire document for one job.
func (s *Service) Status(ctx context.Context, id string) (StatusDocument, error) {
	job, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return StatusDocument{}, err
	}
	return FromJob(job), nil
}

// List returns wire documents for all jobs, oldest first.
func (s *Service) List(ctx context.Context) ([]StatusDocument, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]StatusDocument, 0, len(jobs))
	for _, job := range jobs {
		docs = append(docs, FromJob(job))
	}
	return docs, nil
}

// Summary aggregates job counts for diagnostic output.
func (s *Service) Summary(ctx context.Context) (registry.Summary, error) {
	return s.store.Summarize(ctx)
}

// Health reports daemon liveness plus pipeline stage readiness.
func (s *Service) Health(ctx context.Context) HealthDocument {
	summary := s.orch.Status(ctx)
	doc := HealthDocument{
		Status:   "ok",
		Ready:    summary.Running && summary.Healthy(),
		InFlight: summary.InFlight,
		Capacity: summary.Capacity,
	}
	for _, health := range summary.Stages {
		if !health.Ready {
			doc.Stages = append(doc.Stages, health.Name)
		}
	}
	if !doc.Ready {
		doc.Status = "degraded"
	}
	return doc
}

func (s *Service) discardUpload(locator string) {
	path, err := s.blobs.Resolve(locator)
	if err != nil {
		return
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warn("failed to discard orphaned upload",
			logging.String("input", locator),
			logging.Error(err),
		)
	}
}
