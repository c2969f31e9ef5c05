package apply

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/domedit/journal"
)

// RunnerConfig for the outbox drain loop.
type RunnerConfig struct {
	Store      *journal.Store
	Packager   *Packager
	Dispatcher Dispatcher
	// Poll is the idle polling interval. Default 2s.
	Poll time.Duration
	// Visibility is the delivery lease window. Default 30s.
	Visibility time.Duration
	Logger     *slog.Logger
}

// Runner drains the journal outbox through the packager and dispatcher.
type Runner struct {
	cfg    RunnerConfig
	logger *slog.Logger
}

// NewRunner wires a drain loop. Call Run to start it.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Poll <= 0 {
		cfg.Poll = 2 * time.Second
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: cfg.Logger}
}

// Run delivers until ctx is cancelled. Expired leases are requeued each
// idle cycle, so a crashed delivery is retried rather than lost.
func (r *Runner) Run(ctx context.Context) error {
	tick := time.NewTicker(r.cfg.Poll)
	defer tick.Stop()
	for {
		for {
			ok, err := r.DeliverOne(ctx)
			if err != nil {
				r.logger.Error("apply: deliver", "error", err)
				break
			}
			if !ok {
				break
			}
		}
		if _, err := r.cfg.Store.Requeue(ctx); err != nil {
			r.logger.Warn("apply: requeue expired leases", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// DeliverOne leases, packages and dispatches a single outbox entry.
// Returns false when the outbox is empty. Dispatch failure counts a failed
// attempt and leaves the entry for retry.
func (r *Runner) DeliverOne(ctx context.Context) (bool, error) {
	entry, err := r.cfg.Store.LeaseNext(ctx, r.cfg.Visibility)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	req, err := r.cfg.Packager.Package(entry.Txn)
	if err != nil {
		// Unpackageable entries can never succeed; count attempts until dead.
		r.logger.Error("apply: package", "txn", entry.Txn.ID, "error", err)
		return true, r.cfg.Store.Fail(ctx, entry.OutboxID)
	}
	if err := r.cfg.Dispatcher.Dispatch(ctx, req); err != nil {
		r.logger.Warn("apply: dispatch", "txn", entry.Txn.ID, "error", err)
		return true, r.cfg.Store.Fail(ctx, entry.OutboxID)
	}
	if err := r.cfg.Store.Ack(ctx, entry.OutboxID); err != nil {
		return true, err
	}
	r.logger.Info("apply: delivered", "txn", entry.Txn.ID, "request", req.ID)
	return true, nil
}
