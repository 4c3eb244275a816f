package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/1broseidon/backdrop/internal/monitor"
	"github.com/1broseidon/backdrop/internal/platform"
)

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically compares the platform's outputs with the monitor
// registry and reports drift, covering screen-change events that were
// missed or coalesced away.
type Reconciler struct {
	interval  time.Duration
	topology  platform.TopologyProvider
	registry  *monitor.Registry
	onChanged func() error
	logger    *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
// onChanged runs whenever the outputs no longer match the registry.
func NewReconciler(cfg ReconcilerConfig, topology platform.TopologyProvider, registry *monitor.Registry, onChanged func() error) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval:  interval,
		topology:  topology,
		registry:  registry,
		onChanged: onChanged,
		logger:    logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// reconcile performs a single reconciliation pass. It reports whether drift
// was found.
func (r *Reconciler) reconcile() (drift bool) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	outputs, err := r.topology.Outputs()
	if err != nil {
		r.logger.Error("reconciler: failed to list outputs", "error", err)
		return false
	}
	if r.registry.Matches(outputs) {
		return false
	}

	r.logger.Info("reconciler: monitor drift detected",
		"outputs", len(outputs),
		"registered", r.registry.Len())
	if err := r.onChanged(); err != nil {
		r.logger.Warn("reconciler: failed to apply monitor change", "error", err)
	}
	return true
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow() bool {
	return r.reconcile()
}
