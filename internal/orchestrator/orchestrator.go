package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"log/slog"

	"reframe/internal/blobstore"
	"reframe/internal/config"
	"reframe/internal/logging"
	"reframe/internal/registry"
)

// ErrNotRunning is returned when Dispatch is called before Start or after Stop.
var ErrNotRunning = errors.New("orchestrator is not running")

// ErrAlreadyDispatched is returned when a job already has a live execution.
var ErrAlreadyDispatched = errors.New("job already dispatched")

// Manager coordinates pipeline executions over the job registry.
type Manager struct {
	cfg      *config.Config
	store    *registry.Store
	blobs    *blobstore.Store
	logger   *slog.Logger
	pipeline Pipeline
	sem      chan struct{}

	mu       sync.Mutex
	running  bool
	inflight map[string]struct{}
	cancel   context.CancelFunc
	baseCtx  context.Context
	wg       sync.WaitGroup
}

// NewManager constructs an orchestrator for the given pipeline. The pipeline
// is validated here so a misconfigured daemon fails at startup rather than
// on the first submission.
func NewManager(cfg *config.Config, store *registry.Store, blobs *blobstore.Store, logger *slog.Logger, pipeline Pipeline) (*Manager, error) {
	if err := pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("validate pipeline: %w", err)
	}
	capacity := cfg.Pipeline.MaxConcurrentJobs
	if capacity <= 0 {
		return nil, fmt.Errorf("max_concurrent_jobs must be positive, got %d", capacity)
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		blobs:    blobs,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
		pipeline: pipeline,
		sem:      make(chan struct{}, capacity),
		inflight: make(map[string]struct{}),
	}, nil
}

// Start makes the orchestrator accept dispatches. Executions derive from the
// given context; cancelling it interrupts running pipelines.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("orchestrator already started")
	}
	m.baseCtx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.logger.Info("orchestrator started",
		logging.Int("capacity", cap(m.sem)),
		logging.Int("stage_count", len(m.pipeline)),
	)
	return nil
}

// Stop refuses new dispatches, cancels running executions, and waits for
// them to settle their terminal status.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.logger.Info("orchestrator stopped")
}

// Dispatch launches the pipeline for a queued job and returns immediately.
// A job identifier can have at most one live execution; re-dispatching a
// running job returns ErrAlreadyDispatched.
func (m *Manager) Dispatch(jobID string) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	if _, exists := m.inflight[jobID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("job %s: %w", jobID, ErrAlreadyDispatched)
	}
	m.inflight[jobID] = struct{}{}
	ctx := m.baseCtx
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release(jobID)
		m.run(ctx, jobID)
	}()
	return nil
}

// InFlight reports the number of live executions, including those waiting
// for a concurrency slot.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// Capacity reports the configured concurrency cap.
func (m *Manager) Capacity() int {
	return cap(m.sem)
}

func (m *Manager) release(jobID string) {
	m.mu.Lock()
	delete(m.inflight, jobID)
	m.mu.Unlock()
}
