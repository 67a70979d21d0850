package synccache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/metrics"
)

// RemoteWriter is the write side of the remote store used during
// reconciliation. The write must honor the idempotency key so replays of the
// same queued item cannot create duplicate remote inspections.
type RemoteWriter interface {
	SaveCompleted(ctx context.Context, insp domain.Inspection, idempotencyKey string) error
}

// =============================================================================
// Configuration
// =============================================================================

// ReconcilerConfig holds the configuration for the background reconciler.
type ReconcilerConfig struct {
	// PollInterval is how often the queue is scanned for pending items.
	// Default: 30 seconds
	PollInterval time.Duration

	// AttemptTimeout bounds a single remote write attempt.
	// Default: 15 seconds
	AttemptTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for an in-flight pass to
	// finish. Default: 10 seconds
	ShutdownTimeout time.Duration
}

// DefaultReconcilerConfig returns a ReconcilerConfig with sensible defaults.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		PollInterval:    30 * time.Second,
		AttemptTimeout:  15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c ReconcilerConfig) Validate() error {
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll interval must be at least 1 second, got %v", c.PollInterval)
	}
	if c.AttemptTimeout < time.Second {
		return fmt.Errorf("attempt timeout must be at least 1 second, got %v", c.AttemptTimeout)
	}
	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}

// =============================================================================
// Reconciler
// =============================================================================

// Reconciler drains the pending-inspection queue once connectivity returns.
// Each queued item is attempted independently: removed from the queue on
// remote success, kept for a later pass on failure. One attempt per item per
// pass. Retry pacing comes from the poll interval, never from a loop.
type Reconciler struct {
	cache  *Cache
	remote RemoteWriter
	config ReconcilerConfig
	logger *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewReconciler creates a Reconciler. It must be started with Start and
// stopped with Stop.
func NewReconciler(cache *Cache, remote RemoteWriter, config ReconcilerConfig, logger *slog.Logger) (*Reconciler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Reconciler{
		cache:  cache,
		remote: remote,
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins the background reconciliation loop.
func (r *Reconciler) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
	r.logger.Info("sync reconciler started", "poll_interval", r.config.PollInterval)
}

// Stop signals the loop to stop and waits for it, bounded by the configured
// shutdown timeout.
func (r *Reconciler) Stop() {
	close(r.stopCh)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("sync reconciler stopped")
	case <-time.After(r.config.ShutdownTimeout):
		r.logger.Warn("sync reconciler shutdown timeout exceeded")
	}
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.ReconcileOnce(ctx); err != nil {
				r.logger.Error("reconcile pass failed", "error", err)
			}
		}
	}
}

// ReconcileOnce runs a single pass over the queue. Exposed so callers can
// force a pass when connectivity is known to have returned.
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	pending, err := r.cache.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	for _, item := range pending {
		attemptCtx, cancel := context.WithTimeout(ctx, r.config.AttemptTimeout)
		err := r.remote.SaveCompleted(attemptCtx, item.Inspection, item.IdempotencyKey)
		cancel()

		if err != nil {
			item.Attempts++
			if uerr := r.cache.UpdatePending(ctx, item); uerr != nil {
				r.logger.Error("failed to record sync attempt", "local_id", item.LocalID, "error", uerr)
			}
			metrics.SyncAttempts.WithLabelValues("error").Inc()
			r.logger.Warn("pending inspection not yet synced",
				"local_id", item.LocalID,
				"attempts", item.Attempts,
				"error", err,
			)
			continue
		}

		if err := r.cache.RemovePending(ctx, item.LocalID); err != nil {
			r.logger.Error("failed to dequeue synced inspection", "local_id", item.LocalID, "error", err)
			continue
		}
		metrics.SyncAttempts.WithLabelValues("ok").Inc()
		r.logger.Info("pending inspection synced",
			"local_id", item.LocalID,
			"inspection_id", item.Inspection.ID,
		)
	}
	return nil
}
