// Package videogen implements the video generation stage. It turns the
// edited motion tracks into a segmented render plan.
package videogen

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"log/slog"

	"reframe/internal/blobstore"
	"reframe/internal/fileutil"
	"reframe/internal/frames"
	"reframe/internal/logging"
	"reframe/internal/motion"
	"reframe/internal/registry"
	"reframe/internal/stage"
)

const stageName = "video generation"

// PlanFile is the artifact name inside a job's staging directory.
const PlanFile = "render.json"

// segmentFrames is how many frames each render segment covers.
const segmentFrames = 24

// Segment is one contiguous span of frames in the render plan.
type Segment struct {
	Index      int `json:"index"`
	FrameStart int `json:"frame_start"`
	FrameEnd   int `json:"frame_end"`
}

// Plan is the artifact produced by the generation stage.
type Plan struct {
	JobID        string    `json:"job_id"`
	Source       string    `json:"source"`
	Style        string    `json:"style"`
	StyleApplied bool      `json:"style_applied"`
	FrameCount   int       `json:"frame_count"`
	Segments     []Segment `json:"segments"`
}

// LoadPlan reads the render plan from a job's staging directory.
func LoadPlan(stagingDir string) (*Plan, error) {
	var plan Plan
	if err := fileutil.ReadJSON(filepath.Join(stagingDir, PlanFile), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Generator builds render plans from edited motion tracks.
type Generator struct {
	blobs  *blobstore.Store
	logger *slog.Logger
}

// NewGenerator constructs the video generation stage runner.
func NewGenerator(blobs *blobstore.Store, logger *slog.Logger) *Generator {
	return &Generator{
		blobs:  blobs,
		logger: logging.NewComponentLogger(logger, "videogen"),
	}
}

// Run produces the render plan for the job's edited tracks.
func (g *Generator) Run(ctx context.Context, job *registry.Job) (stage.Outcome, error) {
	staging, err := g.blobs.StagingDir(job.ID)
	if err != nil {
		return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "prepare staging", "", err)
	}

	manifest, err := frames.LoadManifest(staging)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "load manifest", "frame manifest missing, extraction must run first", err)
		}
		return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "load manifest", "", err)
	}

	edit, err := motion.LoadEdit(staging)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "load edit", "motion edit missing, editing must run first", err)
		}
		return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "load edit", "", err)
	}
	if len(edit.Tracks) == 0 {
		return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "load edit", "edit has no tracks", nil)
	}
	if err := ctx.Err(); err != nil {
		return stage.Outcome{}, err
	}

	plan := Plan{
		JobID:        job.ID,
		Source:       manifest.Source,
		Style:        edit.Style,
		StyleApplied: edit.Applied,
		FrameCount:   len(edit.Tracks),
	}
	for start := 0; start < len(edit.Tracks); start += segmentFrames {
		end := start + segmentFrames
		if end > len(edit.Tracks) {
			end = len(edit.Tracks)
		}
		plan.Segments = append(plan.Segments, Segment{
			Index:      len(plan.Segments),
			FrameStart: start,
			FrameEnd:   end - 1,
		})
	}

	if err := fileutil.WriteJSON(filepath.Join(staging, PlanFile), &plan); err != nil {
		return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "write plan", "", err)
	}

	g.logger.Info("generated render plan",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("segment_count", len(plan.Segments)),
		logging.Int("frame_count", plan.FrameCount),
	)
	return stage.Outcome{}, nil
}

// HealthCheck reports readiness of the generator.
func (g *Generator) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(stageName)
}
