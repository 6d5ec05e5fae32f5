// Package reconstruct implements the final pipeline stage. It materializes
// the processed output in the media store and cleans up the job's staging
// scratch space.
package reconstruct

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"log/slog"

	"reframe/internal/blobstore"
	"reframe/internal/logging"
	"reframe/internal/registry"
	"reframe/internal/stage"
	"reframe/internal/videogen"
)

const stageName = "reconstruction"

// Reconstructor copies the rendered result into the processed area and
// returns the locator that becomes the job's output.
type Reconstructor struct {
	blobs  *blobstore.Store
	logger *slog.Logger
}

// NewReconstructor constructs the reconstruction stage runner.
func NewReconstructor(blobs *blobstore.Store, logger *slog.Logger) *Reconstructor {
	return &Reconstructor{
		blobs:  blobs,
		logger: logging.NewComponentLogger(logger, "reconstruct"),
	}
}

// Run validates the render plan, copies the source into the processed area
// under the job's output name, and removes the staging directory. Rendering
// is a copy of the source until a real generator backend lands, so the
// output always exists when the job completes.
func (r *Reconstructor) Run(ctx context.Context, job *registry.Job) (stage.Outcome, error) {
	staging, err := r.blobs.StagingDir(job.ID)
	if err != nil {
		return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "prepare staging", "", err)
	}

	if _, err := videogen.LoadPlan(staging); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "load plan", "render plan missing, generation must run first", err)
		}
		return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "load plan", "", err)
	}
	if !r.blobs.Exists(job.InputLocator) {
		return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "locate source", "uploaded file is missing", nil)
	}
	if err := ctx.Err(); err != nil {
		return stage.Outcome{}, err
	}

	locator, err := r.blobs.CopyToProcessed(job.InputLocator, OutputName(job))
	if err != nil {
		return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "copy output", "", err)
	}

	if err := r.blobs.RemoveStaging(job.ID); err != nil {
		r.logger.Warn("failed to remove staging directory",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
	}

	r.logger.Info("reconstructed output",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("output", locator),
	)
	return stage.Outcome{ArtifactLocator: locator}, nil
}

// HealthCheck verifies the storage root is reachable.
func (r *Reconstructor) HealthCheck(context.Context) stage.Health {
	if info, err := os.Stat(r.blobs.Root()); err != nil || !info.IsDir() {
		return stage.Unhealthy(stageName, "storage root unavailable")
	}
	return stage.Healthy(stageName)
}

// OutputName derives the processed file name for a job, preserving the
// source extension.
func OutputName(job *registry.Job) string {
	ext := filepath.Ext(job.InputLocator)
	return job.ID + "_output" + ext
}
