package daemon

import (
	"context"
	"time"

	"log/slog"

	"reframe/internal/logging"
)

// startRetentionSweep periodically evicts terminal job records older than
// the configured age. Without it the registry grows without bound on
// long-running installs.
func (d *Daemon) startRetentionSweep() {
	if !d.cfg.Retention.Enabled {
		return
	}

	interval := time.Duration(d.cfg.Retention.SweepIntervalMins) * time.Minute
	maxAge := time.Duration(d.cfg.Retention.MaxAgeHours) * time.Hour
	logger := logging.NewComponentLogger(d.logger, "retention")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				d.sweepOnce(d.ctx, logger, maxAge)
			}
		}
	}()

	logger.Info("retention sweep scheduled",
		logging.Duration("interval", interval),
		logging.Duration("max_age", maxAge),
	)
}

func (d *Daemon) sweepOnce(ctx context.Context, logger *slog.Logger, maxAge time.Duration) {
	removed, err := d.store.ClearTerminal(ctx, time.Now().Add(-maxAge))
	if err != nil {
		logger.Error("retention sweep failed", logging.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("evicted terminal job records", logging.Int64("removed", removed))
	}
}
