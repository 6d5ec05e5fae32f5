package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"reframe/internal/blobstore"
	"reframe/internal/config"
	"reframe/internal/frames"
	"reframe/internal/motion"
	"reframe/internal/pose"
	"reframe/internal/reconstruct"
	"reframe/internal/registry"
	"reframe/internal/stage"
	"reframe/internal/videogen"
)

// Stage pairs a runner with its registry status label.
type Stage struct {
	// Name identifies the stage in logs, metrics, and error details.
	Name string
	// Label is the registry status a job carries while this stage runs.
	Label registry.Status
	// Runner performs the stage work.
	Runner stage.Runner
}

// Pipeline is the ordered stage sequence every job passes through.
type Pipeline []Stage

// Validate checks the pipeline invariants: at least one stage, unique
// labels, and no label colliding with the fixed lifecycle statuses.
func (p Pipeline) Validate() error {
	if len(p) == 0 {
		return errors.New("pipeline must define at least one stage")
	}
	seen := make(map[registry.Status]struct{}, len(p))
	for i, st := range p {
		if strings.TrimSpace(st.Name) == "" {
			return fmt.Errorf("stage %d: name must not be empty", i)
		}
		if st.Runner == nil {
			return fmt.Errorf("stage %q: runner must not be nil", st.Name)
		}
		label, ok := registry.ParseStatus(string(st.Label))
		if !ok {
			return fmt.Errorf("stage %q: label must not be empty", st.Name)
		}
		if label == registry.StatusQueued || label.Terminal() {
			return fmt.Errorf("stage %q: label %q collides with a fixed lifecycle status", st.Name, label)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("stage %q: duplicate label %q", st.Name, label)
		}
		seen[label] = struct{}{}
	}
	return nil
}

// Labels returns the status labels in pipeline order.
func (p Pipeline) Labels() []registry.Status {
	labels := make([]registry.Status, 0, len(p))
	for _, st := range p {
		labels = append(labels, st.Label)
	}
	return labels
}

// DefaultPipeline wires the standard five-stage transformation sequence.
func DefaultPipeline(cfg *config.Config, blobs *blobstore.Store, logger *slog.Logger) Pipeline {
	return Pipeline{
		{Name: "frame extraction", Label: "extracting_frames", Runner: frames.NewExtractor(cfg, blobs, logger)},
		{Name: "pose estimation", Label: "estimating_pose", Runner: pose.NewEstimator(blobs, logger)},
		{Name: "motion editing", Label: "editing_motion", Runner: motion.NewEditor(blobs, logger)},
		{Name: "video generation", Label: "generating_video", Runner: videogen.NewGenerator(blobs, logger)},
		{Name: "reconstruction", Label: "reconstructing", Runner: reconstruct.NewReconstructor(blobs, logger)},
	}
}
