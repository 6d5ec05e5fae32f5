package reconstruct_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"reframe/internal/blobstore"
	"reframe/internal/frames"
	"reframe/internal/logging"
	"reframe/internal/motion"
	"reframe/internal/pose"
	"reframe/internal/reconstruct"
	"reframe/internal/registry"
	"reframe/internal/stage"
	"reframe/internal/testsupport"
	"reframe/internal/videogen"
)

func setupPlan(t *testing.T) (*blobstore.Store, *registry.Job, []byte) {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithFrameChunkKiB(1))
	blobs, err := blobstore.New(cfg)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	payload := bytes.Repeat([]byte{0x11, 0x22}, 1024)
	locator, err := blobs.PutUpload(bytes.NewReader(payload), "job-1", "clip.mp4")
	if err != nil {
		t.Fatalf("PutUpload: %v", err)
	}
	job := &registry.Job{ID: "job-1", InputLocator: locator, Style: "cinematic"}

	ctx := context.Background()
	if _, err := frames.NewExtractor(cfg, blobs, logging.NewNop()).Run(ctx, job); err != nil {
		t.Fatalf("extractor.Run: %v", err)
	}
	if _, err := pose.NewEstimator(blobs, logging.NewNop()).Run(ctx, job); err != nil {
		t.Fatalf("estimator.Run: %v", err)
	}
	if _, err := motion.NewEditor(blobs, logging.NewNop()).Run(ctx, job); err != nil {
		t.Fatalf("editor.Run: %v", err)
	}
	if _, err := videogen.NewGenerator(blobs, logging.NewNop()).Run(ctx, job); err != nil {
		t.Fatalf("generator.Run: %v", err)
	}
	return blobs, job, payload
}

func TestReconstructorProducesOutput(t *testing.T) {
	blobs, job, payload := setupPlan(t)

	reconstructor := reconstruct.NewReconstructor(blobs, logging.NewNop())
	outcome, err := reconstructor.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.ArtifactLocator != "/storage/processed/job-1_output.mp4" {
		t.Fatalf("unexpected artifact locator %q", outcome.ArtifactLocator)
	}

	path, err := blobs.Resolve(outcome.ArtifactLocator)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("output must match the source content")
	}
}

func TestReconstructorCleansStaging(t *testing.T) {
	blobs, job, _ := setupPlan(t)

	staging, err := blobs.StagingDir(job.ID)
	if err != nil {
		t.Fatalf("StagingDir: %v", err)
	}

	reconstructor := reconstruct.NewReconstructor(blobs, logging.NewNop())
	if _, err := reconstructor.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(staging); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected staging removed, got %v", err)
	}
}

func TestReconstructorRequiresPlan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	blobs, err := blobstore.New(cfg)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	job := &registry.Job{ID: "job-1", InputLocator: "/storage/uploads/job-1_clip.mp4"}

	reconstructor := reconstruct.NewReconstructor(blobs, logging.NewNop())
	_, err = reconstructor.Run(context.Background(), job)
	if !errors.Is(err, stage.ErrInput) {
		t.Fatalf("expected ErrInput without plan, got %v", err)
	}
}

func TestOutputNamePreservesExtension(t *testing.T) {
	job := &registry.Job{ID: "abc", InputLocator: "/storage/uploads/abc_clip.mov"}
	if got := reconstruct.OutputName(job); got != "abc_output.mov" {
		t.Fatalf("unexpected output name %q", got)
	}

	bare := &registry.Job{ID: "abc", InputLocator: "/storage/uploads/abc_raw"}
	if got := reconstruct.OutputName(bare); got != "abc_output" {
		t.Fatalf("unexpected output name %q", got)
	}
}
