// Package pose implements the pose estimation stage. It derives a
// deterministic keypoint track for every frame in the extraction manifest.
package pose

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
	"reframe/internal/registry"
	"reframe/internal/stage"
)

const stageName = "pose estimation"

// TracksFile is the artifact name inside a job's staging directory.
const TracksFile = "pose.json"

// KeypointNames is the fixed skeleton estimated for every frame.
var KeypointNames = []string{"head", "neck", "torso", "left_hand", "right_hand", "left_foot", "right_foot"}

// Keypoint is one named joint position with a confidence score.
type Keypoint struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Track carries the estimated skeleton for a single frame.
type Track struct {
	Frame     int        `json:"frame"`
	Keypoints []Keypoint `json:"keypoints"`
}

// Tracks is the artifact produced by the estimation stage.
type Tracks struct {
	JobID      string  `json:"job_id"`
	FrameCount int     `json:"frame_count"`
	Tracks     []Track `json:"tracks"`
}

// LoadTracks reads the pose artifact from a job's staging directory.
func LoadTracks(stagingDir string) (*Tracks, error) {
	var tracks Tracks
	if err := fileutil.ReadJSON(filepath.Join(stagingDir, TracksFile), &tracks); err != nil {
		return nil, err
	}
	return &tracks, nil
}

// Estimator derives pose tracks from frame manifests.
type Estimator struct {
	blobs  *blobstore.Store
	logger *slog.Logger
}

// NewEstimator constructs the pose estimation stage runner.
func NewEstimator(blobs *blobstore.Store, logger *slog.Logger) *Estimator {
	return &Estimator{
		blobs:  blobs,
		logger: logging.NewComponentLogger(logger, "pose"),
	}
}

// Run estimates one keypoint track per manifest frame. Estimation is
// deterministic: positions are derived from the frame checksum, so repeated
// runs over the same source produce identical artifacts.
func (e *Estimator) Run(ctx context.Context, job *registry.Job) (stage.Outcome, error) {
	staging, err := e.blobs.StagingDir(job.ID)
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
	if len(manifest.Frames) == 0 {
		return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "load manifest", "manifest has no frames", nil)
	}

	tracks := Tracks{
		JobID:      job.ID,
		FrameCount: len(manifest.Frames),
		Tracks:     make([]Track, 0, len(manifest.Frames)),
	}
	for _, frame := range manifest.Frames {
		if err := ctx.Err(); err != nil {
			return stage.Outcome{}, err
		}
		tracks.Tracks = append(tracks.Tracks, Track{
			Frame:     frame.Index,
			Keypoints: estimateKeypoints(frame.Checksum),
		})
	}

	if err := fileutil.WriteJSON(filepath.Join(staging, TracksFile), &tracks); err != nil {
		return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "write tracks", "", err)
	}

	e.logger.Info("estimated pose tracks",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("track_count", len(tracks.Tracks)),
	)
	return stage.Outcome{}, nil
}

// HealthCheck reports readiness of the estimator.
func (e *Estimator) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(stageName)
}

// estimateKeypoints maps a frame checksum onto normalized joint positions.
// Each keypoint consumes three checksum bytes: x, y, and confidence.
func estimateKeypoints(checksum string) []Keypoint {
	keypoints := make([]Keypoint, 0, len(KeypointNames))
	for i, name := range KeypointNames {
		b1 := checksumByte(checksum, i*3)
		b2 := checksumByte(checksum, i*3+1)
		b3 := checksumByte(checksum, i*3+2)
		keypoints = append(keypoints, Keypoint{
			Name:       name,
			X:          float64(b1) / 255,
			Y:          float64(b2) / 255,
			Confidence: 0.5 + float64(b3)/512,
		})
	}
	return keypoints
}

func checksumByte(checksum string, index int) byte {
	if len(checksum) == 0 {
		return 0
	}
	return checksum[index%len(checksum)]
}
