// Package daemon ties the registry, media store, orchestrator, and HTTP API
// together into the single-instance background service.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"reframe/internal/api"
	"reframe/internal/blobstore"
	"reframe/internal/config"
	"reframe/internal/logging"
	"reframe/internal/orchestrator"
	"reframe/internal/registry"
	"reframe/internal/telemetry"
)

// Daemon coordinates background processing and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *registry.Store
	blobs   *blobstore.Store
	orch    *orchestrator.Manager
	service *api.Service

	lockPath string
	lock     *flock.Flock

	apiSrv *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	RegistryPath string
	LockFilePath string
	Orchestrator orchestrator.StatusSummary
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *registry.Store, blobs *blobstore.Store, orch *orchestrator.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || blobs == nil || orch == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, blobstore, orchestrator, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "reframed.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		blobs:    blobs,
		orch:     orch,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.service = api.NewService(cfg, store, blobs, orch, logger)

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Start acquires the daemon lock, fails over interrupted jobs, and launches
// the orchestrator, HTTP API, and retention sweep.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reframe daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	// Executions do not survive a restart, so any job still carrying a
	// stage label belongs to a dead process and can never finish.
	interrupted, err := d.store.FailInterrupted(d.ctx, registry.InterruptedDetail)
	if err != nil {
		d.releaseStart()
		return fmt.Errorf("fail over interrupted jobs: %w", err)
	}
	if interrupted > 0 {
		telemetry.JobsFailed.WithLabelValues("startup").Add(float64(interrupted))
		d.logger.Warn("failed over interrupted jobs", logging.Int64("count", interrupted))
	}

	if err := d.orch.Start(d.ctx); err != nil {
		d.releaseStart()
		return fmt.Errorf("start orchestrator: %w", err)
	}

	if err := d.apiSrv.start(d.ctx); err != nil {
		d.orch.Stop()
		d.releaseStart()
		return err
	}

	d.startRetentionSweep()

	d.running.Store(true)
	d.logger.Info("reframe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("registry", d.store.Path()),
		logging.String("storage", d.blobs.Root()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiSrv.stop()
	d.orch.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("reframe daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status reports runtime information for diagnostic surfaces.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		RegistryPath: d.store.Path(),
		LockFilePath: d.lockPath,
		Orchestrator: d.orch.Status(ctx),
	}
}

// Service exposes the API service, used by embedded callers and tests.
func (d *Daemon) Service() *api.Service {
	return d.service
}

// APIAddr returns the bound HTTP listener address, or empty before Start.
func (d *Daemon) APIAddr() string {
	return d.apiSrv.addr()
}

func (d *Daemon) releaseStart() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	_ = d.lock.Unlock()
}
