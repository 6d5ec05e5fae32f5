package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"log/slog"

	"reframe/internal/logging"
	"reframe/internal/registry"
	"reframe/internal/stage"
	"reframe/internal/telemetry"
)

// run executes the full pipeline for one job. Every exit path settles the
// job in a terminal status, best effort when the registry itself is
// unavailable.
func (m *Manager) run(ctx context.Context, jobID string) {
	logger := m.logger.With(logging.String(logging.FieldJobID, jobID))

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		m.failJob(logger, jobID, "startup", registry.InterruptedDetail)
		return
	}
	defer func() { <-m.sem }()

	telemetry.JobsInFlight.Inc()
	defer telemetry.JobsInFlight.Dec()

	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		logger.Error("failed to load dispatched job", logging.Error(err))
		if !errors.Is(err, registry.ErrNotFound) {
			m.failJob(logger, jobID, "startup", "registry unavailable during processing")
		}
		return
	}
	if job.Status.Terminal() {
		logger.Warn("dispatched job is already terminal", logging.String("status", string(job.Status)))
		return
	}

	var output string
	for _, st := range m.pipeline {
		if err := ctx.Err(); err != nil {
			m.failJob(logger, jobID, st.Name, registry.InterruptedDetail)
			return
		}
		if err := m.store.UpdateStatus(ctx, jobID, st.Label); err != nil {
			logger.Error("failed to persist stage label",
				logging.String(logging.FieldStage, st.Name),
				logging.Error(err),
			)
			m.failJob(logger, jobID, st.Name, "registry unavailable during processing")
			return
		}
		logger.Info("stage started",
			logging.String(logging.FieldStage, st.Name),
			logging.String("status", string(st.Label)),
		)

		started := time.Now()
		outcome, err := stage.Execute(ctx, st.Runner, job)
		telemetry.ObserveStage(string(st.Label), time.Since(started))
		if err != nil {
			detail := stage.FailureDetail(err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				detail = registry.InterruptedDetail
			}
			m.failJob(logger, jobID, st.Name, detail)
			m.cleanupStaging(logger, jobID)
			return
		}
		if outcome.ArtifactLocator != "" {
			output = outcome.ArtifactLocator
		}
		logger.Info("stage finished",
			logging.String(logging.FieldStage, st.Name),
			logging.Duration("elapsed", time.Since(started)),
		)
	}

	if output == "" {
		// No stage produced a retrievable artifact; fall back to publishing
		// a copy of the input so completed jobs always have an output.
		fallback, err := m.blobs.CopyToProcessed(job.InputLocator, fallbackOutputName(job))
		if err != nil {
			m.failJob(logger, jobID, "finalize", stage.FailureDetail(
				stage.Wrap(stage.ErrStorage, "finalize", "publish fallback output", "", err)))
			return
		}
		output = fallback
	}

	if err := m.store.Complete(context.WithoutCancel(ctx), jobID, output); err != nil {
		logger.Error("failed to persist completion", logging.Error(err))
		m.failJob(logger, jobID, "finalize", "registry unavailable during completion")
		return
	}
	telemetry.JobsCompleted.Inc()
	logger.Info("job completed", logging.String("output", output))
}

// failJob settles a job in the failed status. Persistence uses a detached
// context so shutdown cannot strand a job mid-pipeline without a terminal
// status on disk.
func (m *Manager) failJob(logger *slog.Logger, jobID, stageName, detail string) {
	if err := m.store.Fail(context.Background(), jobID, detail); err != nil {
		logger.Error("failed to persist failure",
			logging.String(logging.FieldStage, stageName),
			logging.Error(err),
		)
		return
	}
	telemetry.JobsFailed.WithLabelValues(stageName).Inc()
	logger.Info("job failed",
		logging.String(logging.FieldStage, stageName),
		logging.String("detail", detail),
	)
}

func (m *Manager) cleanupStaging(logger *slog.Logger, jobID string) {
	if err := m.blobs.RemoveStaging(jobID); err != nil {
		logger.Warn("failed to remove staging after failure", logging.Error(err))
	}
}

func fallbackOutputName(job *registry.Job) string {
	return job.ID + "_output" + filepath.Ext(job.InputLocator)
}
