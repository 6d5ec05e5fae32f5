package orchestrator_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"reframe/internal/blobstore"
	"reframe/internal/config"
	"reframe/internal/logging"
	"reframe/internal/orchestrator"
	"reframe/internal/registry"
	"reframe/internal/stage"
	"reframe/internal/testsupport"
)

type stubRunner struct {
	name    string
	outcome stage.Outcome
	err     error
	block   chan struct{}
	started chan struct{}

	mu   sync.Mutex
	runs int
}

func (s *stubRunner) Run(ctx context.Context, _ *registry.Job) (stage.Outcome, error) {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
		s.started = nil
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return stage.Outcome{}, ctx.Err()
		}
	}
	return s.outcome, s.err
}

func (s *stubRunner) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func (s *stubRunner) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

type fixture struct {
	cfg     *config.Config
	store   *registry.Store
	blobs   *blobstore.Store
	manager *orchestrator.Manager
}

func newFixture(t *testing.T, pipeline orchestrator.Pipeline, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	manager, err := orchestrator.NewManager(cfg, store, blobs, logging.NewNop(), pipeline)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(manager.Stop)
	return &fixture{cfg: cfg, store: store, blobs: blobs, manager: manager}
}

func (f *fixture) newJob(t *testing.T, content string) *registry.Job {
	t.Helper()

	id := uuid.NewString()
	locator, err := f.blobs.PutUpload(strings.NewReader(content), id, "clip.mp4")
	if err != nil {
		t.Fatalf("PutUpload: %v", err)
	}
	job, err := f.store.Create(context.Background(), id, locator, "cinematic")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func waitForTerminal(t *testing.T, store *registry.Store, id string) *registry.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", id)
	return nil
}

func waitForDrain(t *testing.T, manager *orchestrator.Manager) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if manager.InFlight() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("manager never drained, %d executions still in flight", manager.InFlight())
}

func TestManagerCompletesJob(t *testing.T) {
	first := &stubRunner{name: "first"}
	second := &stubRunner{name: "second", outcome: stage.Outcome{ArtifactLocator: "/storage/processed/result.mp4"}}
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "first", Label: "first_stage", Runner: first},
		{Name: "second", Label: "second_stage", Runner: second},
	})
	job := f.newJob(t, "payload")

	if err := f.manager.Dispatch(job.ID); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	done := waitForTerminal(t, f.store, job.ID)
	if done.Status != registry.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", done.Status, done.ErrorDetail)
	}
	if done.OutputLocator != "/storage/processed/result.mp4" {
		t.Fatalf("unexpected output locator %q", done.OutputLocator)
	}
	if first.Runs() != 1 || second.Runs() != 1 {
		t.Fatalf("expected each stage to run once, got %d and %d", first.Runs(), second.Runs())
	}
}

func TestManagerFailureStopsPipeline(t *testing.T) {
	failing := &stubRunner{
		name: "failing",
		err:  stage.Wrap(stage.ErrProcessing, "failing", "run", "synthetic failure", nil),
	}
	after := &stubRunner{name: "after"}
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "failing", Label: "failing_stage", Runner: failing},
		{Name: "after", Label: "after_stage", Runner: after},
	})
	job := f.newJob(t, "payload")

	if err := f.manager.Dispatch(job.ID); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	done := waitForTerminal(t, f.store, job.ID)
	if done.Status != registry.StatusFailed {
		t.Fatalf("expected failed, got %s", done.Status)
	}
	if !strings.Contains(done.ErrorDetail, "synthetic failure") {
		t.Fatalf("unexpected error detail %q", done.ErrorDetail)
	}
	if done.OutputLocator != "" {
		t.Fatalf("failed job must not carry an output locator, got %q", done.OutputLocator)
	}
	if after.Runs() != 0 {
		t.Fatalf("stages after a failure must not run, got %d runs", after.Runs())
	}
}

// perJobRunner fails the pipeline for a single job id and succeeds for
// every other job.
type perJobRunner struct {
	name   string
	failID string
	err    error
}

func (r *perJobRunner) Run(_ context.Context, job *registry.Job) (stage.Outcome, error) {
	if job.ID == r.failID {
		return stage.Outcome{}, r.err
	}
	return stage.Outcome{ArtifactLocator: "/storage/processed/" + job.ID + "_output.mp4"}, nil
}

func (r *perJobRunner) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(r.name)
}

func TestManagerIsolatesFailureBetweenJobs(t *testing.T) {
	goodID := uuid.NewString()
	badID := uuid.NewString()
	doomed := &perJobRunner{
		name:   "doomed",
		failID: badID,
		err:    stage.Wrap(stage.ErrProcessing, "doomed", "run", "synthetic failure", nil),
	}
	after := &stubRunner{name: "after"}
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "doomed", Label: "doomed_stage", Runner: doomed},
		{Name: "after", Label: "after_stage", Runner: after},
	})

	for _, id := range []string{goodID, badID} {
		locator, err := f.blobs.PutUpload(strings.NewReader("payload for "+id), id, "clip.mp4")
		if err != nil {
			t.Fatalf("PutUpload: %v", err)
		}
		if _, err := f.store.Create(context.Background(), id, locator, "cinematic"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if err := f.manager.Dispatch(goodID); err != nil {
		t.Fatalf("Dispatch good: %v", err)
	}
	if err := f.manager.Dispatch(badID); err != nil {
		t.Fatalf("Dispatch bad: %v", err)
	}

	failed := waitForTerminal(t, f.store, badID)
	completed := waitForTerminal(t, f.store, goodID)

	if failed.Status != registry.StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if !strings.Contains(failed.ErrorDetail, "synthetic failure") {
		t.Fatalf("unexpected error detail %q", failed.ErrorDetail)
	}
	if failed.OutputLocator != "" {
		t.Fatalf("failed job must not carry an output locator, got %q", failed.OutputLocator)
	}

	if completed.Status != registry.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", completed.Status, completed.ErrorDetail)
	}
	if completed.OutputLocator != "/storage/processed/"+goodID+"_output.mp4" {
		t.Fatalf("unexpected output locator %q", completed.OutputLocator)
	}
	if after.Runs() != 1 {
		t.Fatalf("only the surviving job may reach later stages, got %d runs", after.Runs())
	}
}

func TestManagerStatusProgressionIsMonotonic(t *testing.T) {
	release1 := make(chan struct{})
	started1 := make(chan struct{})
	release2 := make(chan struct{})
	started2 := make(chan struct{})
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "first", Label: "first_stage", Runner: &stubRunner{name: "first", block: release1, started: started1}},
		{Name: "second", Label: "second_stage", Runner: &stubRunner{name: "second", block: release2, started: started2}},
	})
	job := f.newJob(t, "payload")

	rank := map[registry.Status]int{
		registry.StatusQueued:    0,
		"first_stage":            1,
		"second_stage":           2,
		registry.StatusCompleted: 3,
	}

	snapshot := func() registry.Status {
		t.Helper()
		current, err := f.store.Get(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		return current.Status
	}

	// Sample the persisted status at each point the pipeline is parked:
	// before dispatch, while each stage blocks, and after the terminal
	// write. The sequence must walk the pipeline order forward only.
	observed := []registry.Status{snapshot()}

	if err := f.manager.Dispatch(job.ID); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	<-started1
	observed = append(observed, snapshot())
	close(release1)
	<-started2
	observed = append(observed, snapshot())
	close(release2)

	observed = append(observed, waitForTerminal(t, f.store, job.ID).Status)

	want := []registry.Status{registry.StatusQueued, "first_stage", "second_stage", registry.StatusCompleted}
	for i, status := range observed {
		pos, ok := rank[status]
		if !ok {
			t.Fatalf("unexpected status %q in progression %v", status, observed)
		}
		if i > 0 && pos <= rank[observed[i-1]] {
			t.Fatalf("status did not advance from %q to %q in %v", observed[i-1], status, observed)
		}
		if status != want[i] {
			t.Fatalf("expected %q at step %d, got %v", want[i], i, observed)
		}
	}
}

func TestManagerDrainsWhenRegistryUnavailable(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := &stubRunner{name: "blocking", block: release, started: started}
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "blocking", Label: "blocking_stage", Runner: blocking},
	})
	job := f.newJob(t, "payload")

	if err := f.manager.Dispatch(job.ID); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	<-started

	// Losing the registry mid-run must not wedge the execution slot; the
	// completion write and the best-effort failure write both fail, and
	// the run still exits.
	if err := f.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	close(release)

	waitForDrain(t, f.manager)
}

func TestManagerDrainsOnUnknownJob(t *testing.T) {
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "noop", Label: "noop_stage", Runner: &stubRunner{name: "noop"}},
	})

	if err := f.manager.Dispatch("no-such-job"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	waitForDrain(t, f.manager)

	// The slot is released, so the same id may be dispatched again.
	if err := f.manager.Dispatch("no-such-job"); err != nil {
		t.Fatalf("redispatch after drain: %v", err)
	}
	waitForDrain(t, f.manager)
}

func TestManagerFallbackOutputCopiesInput(t *testing.T) {
	quiet := &stubRunner{name: "quiet"}
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "quiet", Label: "quiet_stage", Runner: quiet},
	})
	job := f.newJob(t, "input bytes")

	if err := f.manager.Dispatch(job.ID); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	done := waitForTerminal(t, f.store, job.ID)
	if done.Status != registry.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", done.Status, done.ErrorDetail)
	}
	want := "/storage/processed/" + job.ID + "_output.mp4"
	if done.OutputLocator != want {
		t.Fatalf("unexpected fallback locator %q, want %q", done.OutputLocator, want)
	}
	if !f.blobs.Exists(done.OutputLocator) {
		t.Fatal("fallback output must exist in the store")
	}
}

func TestManagerRejectsDuplicateDispatch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := &stubRunner{name: "blocking", block: release, started: started}
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "blocking", Label: "blocking_stage", Runner: blocking},
	})
	job := f.newJob(t, "payload")

	if err := f.manager.Dispatch(job.ID); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	<-started

	if err := f.manager.Dispatch(job.ID); !errors.Is(err, orchestrator.ErrAlreadyDispatched) {
		t.Fatalf("expected ErrAlreadyDispatched, got %v", err)
	}

	close(release)
	waitForTerminal(t, f.store, job.ID)
}

func TestManagerDispatchRequiresStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	manager, err := orchestrator.NewManager(cfg, store, blobs, logging.NewNop(), orchestrator.Pipeline{
		{Name: "noop", Label: "noop_stage", Runner: &stubRunner{name: "noop"}},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := manager.Dispatch("job-1"); !errors.Is(err, orchestrator.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestManagerHonorsConcurrencyCap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := &stubRunner{name: "blocking", block: release, started: started}
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "blocking", Label: "blocking_stage", Runner: blocking},
	}, testsupport.WithMaxConcurrentJobs(1))

	first := f.newJob(t, "first")
	second := f.newJob(t, "second")

	if err := f.manager.Dispatch(first.ID); err != nil {
		t.Fatalf("Dispatch first: %v", err)
	}
	<-started
	if err := f.manager.Dispatch(second.ID); err != nil {
		t.Fatalf("Dispatch second: %v", err)
	}

	// The second job waits for a slot: it must still be queued while the
	// first holds the only one.
	time.Sleep(50 * time.Millisecond)
	waiting, err := f.store.Get(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if waiting.Status != registry.StatusQueued {
		t.Fatalf("expected second job queued while capacity is held, got %s", waiting.Status)
	}
	if f.manager.InFlight() != 2 {
		t.Fatalf("expected 2 in-flight executions, got %d", f.manager.InFlight())
	}

	close(release)
	waitForTerminal(t, f.store, first.ID)
	waitForTerminal(t, f.store, second.ID)
}

func TestManagerStopInterruptsRunningJob(t *testing.T) {
	started := make(chan struct{})
	blocking := &stubRunner{name: "blocking", block: make(chan struct{}), started: started}
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "blocking", Label: "blocking_stage", Runner: blocking},
	})
	job := f.newJob(t, "payload")

	if err := f.manager.Dispatch(job.ID); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	<-started
	f.manager.Stop()

	done, err := f.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if done.Status != registry.StatusFailed {
		t.Fatalf("expected failed after stop, got %s", done.Status)
	}
	if done.ErrorDetail != registry.InterruptedDetail {
		t.Fatalf("unexpected detail %q", done.ErrorDetail)
	}
}

func TestManagerStatusReportsStages(t *testing.T) {
	f := newFixture(t, orchestrator.Pipeline{
		{Name: "first", Label: "first_stage", Runner: &stubRunner{name: "first"}},
		{Name: "second", Label: "second_stage", Runner: &stubRunner{name: "second"}},
	})

	summary := f.manager.Status(context.Background())
	if !summary.Running || summary.InFlight != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Capacity != f.cfg.Pipeline.MaxConcurrentJobs {
		t.Fatalf("capacity mismatch: %d", summary.Capacity)
	}
	if len(summary.Stages) != 2 || !summary.Healthy() {
		t.Fatalf("expected 2 healthy stages, got %+v", summary.Stages)
	}
}

func TestPipelineValidate(t *testing.T) {
	runner := &stubRunner{name: "noop"}
	cases := []struct {
		name     string
		pipeline orchestrator.Pipeline
	}{
		{"empty", orchestrator.Pipeline{}},
		{"missing name", orchestrator.Pipeline{{Label: "a", Runner: runner}}},
		{"nil runner", orchestrator.Pipeline{{Name: "a", Label: "a"}}},
		{"blank label", orchestrator.Pipeline{{Name: "a", Label: " ", Runner: runner}}},
		{"fixed status collision", orchestrator.Pipeline{{Name: "a", Label: registry.StatusFailed, Runner: runner}}},
		{"queued collision", orchestrator.Pipeline{{Name: "a", Label: registry.StatusQueued, Runner: runner}}},
		{"duplicate label", orchestrator.Pipeline{
			{Name: "a", Label: "same", Runner: runner},
			{Name: "b", Label: "same", Runner: runner},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.pipeline.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	valid := orchestrator.Pipeline{
		{Name: "a", Label: "stage_a", Runner: runner},
		{Name: "b", Label: "stage_b", Runner: runner},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid pipeline, got %v", err)
	}
}

func TestDefaultPipelineRunsEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFrameChunkKiB(1))
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	pipeline := orchestrator.DefaultPipeline(cfg, blobs, logging.NewNop())
	manager, err := orchestrator.NewManager(cfg, store, blobs, logging.NewNop(), pipeline)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(manager.Stop)

	id := uuid.NewString()
	payload := bytes.Repeat([]byte{0x42}, 3*1024)
	locator, err := blobs.PutUpload(bytes.NewReader(payload), id, "clip.mp4")
	if err != nil {
		t.Fatalf("PutUpload: %v", err)
	}
	if _, err := store.Create(context.Background(), id, locator, "cinematic"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := manager.Dispatch(id); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	done := waitForTerminal(t, store, id)
	if done.Status != registry.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", done.Status, done.ErrorDetail)
	}
	if done.OutputLocator != "/storage/processed/"+id+"_output.mp4" {
		t.Fatalf("unexpected output locator %q", done.OutputLocator)
	}
	if !blobs.Exists(done.OutputLocator) {
		t.Fatal("processed output must exist")
	}
}
