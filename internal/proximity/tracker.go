package proximity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roadmedic/reportsync/internal/domain"
	"github.com/roadmedic/reportsync/internal/observability"
)

// FixSource delivers location fixes from the positioning collaborator.
// Next blocks until a fix arrives or the context is cancelled.
type FixSource interface {
	Next(ctx context.Context) (domain.Fix, error)
}

// Tracker holds the latest fix and the current report set, and recomputes
// the nearest-report distance whenever either changes. Only the latest fix
// matters; each update replaces the previous one wholesale.
type Tracker struct {
	source  FixSource
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	fix     *domain.Fix
	reports []domain.Report

	ready atomic.Bool
}

// NewTracker creates a Tracker fed by the given fix source.
func NewTracker(source FixSource, logger *slog.Logger, metrics *observability.Metrics) *Tracker {
	return &Tracker{
		source:  source,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once at least one fix has been delivered.
// Before that, proximity queries cannot be answered.
func (t *Tracker) CheckReadiness(_ context.Context) error {
	if !t.ready.Load() {
		return errors.New("no location fix received yet")
	}
	return nil
}

// SetReports replaces the tracked report set and recomputes the nearest
// distance against the current fix.
func (t *Tracker) SetReports(reports []domain.Report) {
	t.mu.Lock()
	t.reports = reports
	t.mu.Unlock()

	t.metrics.TrackedReports.Set(float64(len(reports)))
	t.recompute()
}

// CurrentFix returns a copy of the latest fix, or nil when none has been
// delivered.
func (t *Tracker) CurrentFix() *domain.Fix {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.fix == nil {
		return nil
	}
	fix := *t.fix
	return &fix
}

// NearestDistance computes the distance from the latest fix to the nearest
// tracked report. ErrUnavailable when there is no fix or no reports.
func (t *Tracker) NearestDistance() (float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Nearest(t.reports, t.fix)
}

// Apply records a fix directly, outside the Run loop. Used by the loop
// itself and by tests.
func (t *Tracker) Apply(fix domain.Fix) {
	t.mu.Lock()
	t.fix = &fix
	t.mu.Unlock()

	t.ready.Store(true)
	t.metrics.FixUpdates.Inc()
	t.recompute()
}

// Run consumes the fix stream until the context is cancelled. Source
// failures back off exponentially (200ms doubling to 5s) instead of
// spinning.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("proximity tracker started")

	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		fix, err := t.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.logger.Info("proximity tracker stopping", "reason", ctx.Err())
				return nil
			}
			t.logger.Error("fix source failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		t.Apply(fix)
	}
}

func (t *Tracker) recompute() {
	d, err := t.NearestDistance()
	if err != nil {
		t.metrics.NearestReportMeters.Set(-1)
		return
	}
	t.metrics.NearestReportMeters.Set(d)
	t.logger.Debug("nearest report recomputed", "meters", d)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
