// Package motion implements the motion editing stage. It rewrites pose
// tracks according to a named style profile.
package motion

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"log/slog"

	"reframe/internal/blobstore"
	"reframe/internal/fileutil"
	"reframe/internal/logging"
	"reframe/internal/pose"
	"reframe/internal/registry"
	"reframe/internal/stage"
)

const stageName = "motion editing"

// EditFile is the artifact name inside a job's staging directory.
const EditFile = "motion.json"

// Profile tunes how a style reshapes the pose tracks. Smoothing blends each
// keypoint toward its position in the previous frame; Amplify scales motion
// away from the frame center.
type Profile struct {
	Smoothing float64 `json:"smoothing"`
	Amplify   float64 `json:"amplify"`
}

// profiles maps known style names to their editing parameters. Unknown
// styles pass tracks through unchanged.
var profiles = map[string]Profile{
	"cinematic":   {Smoothing: 0.65, Amplify: 1.10},
	"documentary": {Smoothing: 0.30, Amplify: 1.00},
	"anime":       {Smoothing: 0.15, Amplify: 1.35},
}

// KnownStyles lists the styles with a registered profile.
func KnownStyles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	return names
}

// Edit is the artifact produced by the motion editing stage.
type Edit struct {
	JobID   string       `json:"job_id"`
	Style   string       `json:"style"`
	Applied bool         `json:"applied"`
	Profile Profile      `json:"profile"`
	Tracks  []pose.Track `json:"tracks"`
}

// LoadEdit reads the motion artifact from a job's staging directory.
func LoadEdit(stagingDir string) (*Edit, error) {
	var edit Edit
	if err := fileutil.ReadJSON(filepath.Join(stagingDir, EditFile), &edit); err != nil {
		return nil, err
	}
	return &edit, nil
}

// Editor applies style profiles to pose tracks.
type Editor struct {
	blobs  *blobstore.Store
	logger *slog.Logger
}

// NewEditor constructs the motion editing stage runner.
func NewEditor(blobs *blobstore.Store, logger *slog.Logger) *Editor {
	return &Editor{
		blobs:  blobs,
		logger: logging.NewComponentLogger(logger, "motion"),
	}
}

// Run edits the job's pose tracks according to its style. A style without a
// registered profile passes the tracks through unchanged rather than
// failing the job.
func (e *Editor) Run(ctx context.Context, job *registry.Job) (stage.Outcome, error) {
	staging, err := e.blobs.StagingDir(job.ID)
	if err != nil {
		return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "prepare staging", "", err)
	}

	tracks, err := pose.LoadTracks(staging)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "load tracks", "pose tracks missing, estimation must run first", err)
		}
		return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "load tracks", "", err)
	}

	style := strings.ToLower(strings.TrimSpace(job.Style))
	profile, known := profiles[style]

	edit := Edit{
		JobID:   job.ID,
		Style:   style,
		Applied: known,
		Profile: profile,
		Tracks:  tracks.Tracks,
	}
	if known {
		edit.Tracks = applyProfile(ctx, tracks.Tracks, profile)
		if err := ctx.Err(); err != nil {
			return stage.Outcome{}, err
		}
	} else {
		e.logger.Warn("unknown style, passing tracks through",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("style", style),
		)
	}

	if err := fileutil.WriteJSON(filepath.Join(staging, EditFile), &edit); err != nil {
		return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "write edit", "", err)
	}

	e.logger.Info("edited motion tracks",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("style", style),
		logging.Bool("applied", known),
	)
	return stage.Outcome{}, nil
}

// HealthCheck reports readiness of the editor.
func (e *Editor) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(stageName)
}

func applyProfile(ctx context.Context, tracks []pose.Track, profile Profile) []pose.Track {
	edited := make([]pose.Track, len(tracks))
	var prev []pose.Keypoint
	for i, track := range tracks {
		if ctx.Err() != nil {
			return edited[:i]
		}
		keypoints := make([]pose.Keypoint, len(track.Keypoints))
		for j, kp := range track.Keypoints {
			next := kp
			if prev != nil && j < len(prev) {
				next.X = prev[j].X*profile.Smoothing + kp.X*(1-profile.Smoothing)
				next.Y = prev[j].Y*profile.Smoothing + kp.Y*(1-profile.Smoothing)
			}
			next.X = clamp(0.5 + (next.X-0.5)*profile.Amplify)
			next.Y = clamp(0.5 + (next.Y-0.5)*profile.Amplify)
			keypoints[j] = next
		}
		edited[i] = pose.Track{Frame: track.Frame, Keypoints: keypoints}
		prev = keypoints
	}
	return edited
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
