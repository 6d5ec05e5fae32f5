// Package frames implements the frame extraction stage. It splits the
// uploaded source into fixed-size chunks and records a checksummed manifest
// that downstream stages treat as the frame sequence.
package frames

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"log/slog"

	"reframe/internal/blobstore"
	"reframe/internal/config"
	"reframe/internal/fileutil"
	"reframe/internal/logging"
	"reframe/internal/registry"
	"reframe/internal/stage"
)

const stageName = "frame extraction"

// ManifestFile is the manifest name inside a job's staging directory.
const ManifestFile = "frames.json"

// Frame describes one extracted chunk of the source.
type Frame struct {
	Index    int    `json:"index"`
	Offset   int64  `json:"offset"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Manifest is the artifact produced by the extraction stage.
type Manifest struct {
	JobID      string  `json:"job_id"`
	Source     string  `json:"source"`
	ChunkBytes int64   `json:"chunk_bytes"`
	FrameCount int     `json:"frame_count"`
	Frames     []Frame `json:"frames"`
}

// LoadManifest reads the manifest from a job's staging directory.
func LoadManifest(stagingDir string) (*Manifest, error) {
	var manifest Manifest
	if err := fileutil.ReadJSON(filepath.Join(stagingDir, ManifestFile), &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// Extractor chunks uploaded sources into frame manifests.
type Extractor struct {
	cfg    *config.Config
	blobs  *blobstore.Store
	logger *slog.Logger
}

// NewExtractor constructs the frame extraction stage runner.
func NewExtractor(cfg *config.Config, blobs *blobstore.Store, logger *slog.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		blobs:  blobs,
		logger: logging.NewComponentLogger(logger, "frames"),
	}
}

// Run extracts the frame manifest for the job's uploaded source.
func (e *Extractor) Run(ctx context.Context, job *registry.Job) (stage.Outcome, error) {
	src, err := e.blobs.Resolve(job.InputLocator)
	if err != nil {
		return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "resolve source", "", err)
	}

	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "open source", "uploaded file is missing", err)
		}
		return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "open source", "", err)
	}
	defer in.Close()

	chunkBytes := int64(e.cfg.Pipeline.FrameChunkKiB) << 10
	if chunkBytes <= 0 {
		return stage.Outcome{}, stage.Wrap(stage.ErrConfiguration, stageName, "chunk size", fmt.Sprintf("frame_chunk_kib must be positive, got %d", e.cfg.Pipeline.FrameChunkKiB), nil)
	}

	manifest := Manifest{
		JobID:      job.ID,
		Source:     job.InputLocator,
		ChunkBytes: chunkBytes,
	}

	buf := make([]byte, chunkBytes)
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return stage.Outcome{}, err
		}
		n, readErr := io.ReadFull(in, buf)
		if n > 0 {
			sum := sha256.Sum256(buf[:n])
			manifest.Frames = append(manifest.Frames, Frame{
				Index:    len(manifest.Frames),
				Offset:   offset,
				Size:     int64(n),
				Checksum: hex.EncodeToString(sum[:]),
			})
			offset += int64(n)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				break
			}
			return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "read source", "", readErr)
		}
	}

	if len(manifest.Frames) == 0 {
		return stage.Outcome{}, stage.Wrap(stage.ErrInput, stageName, "read source", "source is empty, no frames to extract", nil)
	}
	manifest.FrameCount = len(manifest.Frames)

	staging, err := e.blobs.StagingDir(job.ID)
	if err != nil {
		return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "prepare staging", "", err)
	}
	if err := fileutil.WriteJSON(filepath.Join(staging, ManifestFile), &manifest); err != nil {
		return stage.Outcome{}, stage.Wrap(stage.ErrStorage, stageName, "write manifest", "", err)
	}

	e.logger.Info("extracted frame manifest",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("frame_count", manifest.FrameCount),
		logging.Int64("chunk_bytes", chunkBytes),
	)
	return stage.Outcome{}, nil
}

// HealthCheck verifies the storage root and chunk configuration.
func (e *Extractor) HealthCheck(context.Context) stage.Health {
	if e.cfg.Pipeline.FrameChunkKiB <= 0 {
		return stage.Unhealthy(stageName, "frame_chunk_kib must be positive")
	}
	if info, err := os.Stat(e.blobs.Root()); err != nil || !info.IsDir() {
		return stage.Unhealthy(stageName, "storage root unavailable")
	}
	return stage.Healthy(stageName)
}
