package frames_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"reframe/internal/blobstore"
	"reframe/internal/frames"
	"reframe/internal/logging"
	"reframe/internal/registry"
	"reframe/internal/stage"
	"reframe/internal/testsupport"
)

func TestExtractorBuildsManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFrameChunkKiB(1))
	blobs, err := blobstore.New(cfg)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	payload := bytes.Repeat([]byte{0xAB}, 2*1024+512)
	locator, err := blobs.PutUpload(bytes.NewReader(payload), "job-1", "clip.mp4")
	if err != nil {
		t.Fatalf("PutUpload: %v", err)
	}
	job := &registry.Job{ID: "job-1", InputLocator: locator, Style: "cinematic"}

	extractor := frames.NewExtractor(cfg, blobs, logging.NewNop())
	if _, err := extractor.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	staging, err := blobs.StagingDir(job.ID)
	if err != nil {
		t.Fatalf("StagingDir: %v", err)
	}
	manifest, err := frames.LoadManifest(staging)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if manifest.JobID != "job-1" || manifest.Source != locator {
		t.Fatalf("unexpected manifest header: %+v", manifest)
	}
	if manifest.FrameCount != 3 || len(manifest.Frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", manifest.FrameCount)
	}
	if manifest.Frames[1].Offset != 1024 || manifest.Frames[2].Size != 512 {
		t.Fatalf("unexpected frame geometry: %+v", manifest.Frames)
	}
	// First two chunks are identical bytes, the partial tail is not.
	if manifest.Frames[0].Checksum != manifest.Frames[1].Checksum {
		t.Fatal("identical chunks must checksum identically")
	}
	if manifest.Frames[0].Checksum == manifest.Frames[2].Checksum {
		t.Fatal("partial tail chunk must checksum differently")
	}
}

func TestExtractorRejectsEmptySource(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFrameChunkKiB(1))
	blobs, err := blobstore.New(cfg)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	locator, err := blobs.PutUpload(strings.NewReader(""), "job-1", "clip.mp4")
	if err != nil {
		t.Fatalf("PutUpload: %v", err)
	}
	job := &registry.Job{ID: "job-1", InputLocator: locator}

	extractor := frames.NewExtractor(cfg, blobs, logging.NewNop())
	_, err = extractor.Run(context.Background(), job)
	if !errors.Is(err, stage.ErrInput) {
		t.Fatalf("expected ErrInput for empty source, got %v", err)
	}
}

func TestExtractorRejectsMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	blobs, err := blobstore.New(cfg)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	job := &registry.Job{ID: "job-1", InputLocator: "/storage/uploads/job-1_missing.mp4"}

	extractor := frames.NewExtractor(cfg, blobs, logging.NewNop())
	_, err = extractor.Run(context.Background(), job)
	if !errors.Is(err, stage.ErrInput) {
		t.Fatalf("expected ErrInput for missing source, got %v", err)
	}
}

func TestExtractorHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	blobs, err := blobstore.New(cfg)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	extractor := frames.NewExtractor(cfg, blobs, logging.NewNop())
	if health := extractor.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy extractor, got %+v", health)
	}

	cfg.Pipeline.FrameChunkKiB = 0
	if health := extractor.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy extractor for zero chunk size")
	}
}
