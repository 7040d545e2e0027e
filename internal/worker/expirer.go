package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/outline-admin/internal/service/customer"
	"go.uber.org/zap"
)

// Sweeper runs one expiry sweep.
type Sweeper interface {
	ExpireSweep(ctx context.Context) (customer.SweepResult, error)
}

// Expirer runs the expiry sweep on a fixed interval, starting immediately.
type Expirer struct {
	Sweeper  Sweeper
	Interval time.Duration
	Log      *zap.Logger
}

func NewExpirer(s Sweeper, interval time.Duration, log *zap.Logger) *Expirer {
	return &Expirer{Sweeper: s, Interval: interval, Log: log}
}

// Run blocks until ctx is cancelled. A failed sweep is logged and retried on
// the next tick.
func (w *Expirer) Run(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 10 * time.Minute
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}

	tick := time.NewTicker(w.Interval)
	defer tick.Stop()

	for {
		res, err := w.Sweeper.ExpireSweep(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			w.Log.Error("expirer: sweep failed", zap.Error(err))
		case err == nil && res.Checked > 0:
			w.Log.Info("expirer: sweep",
				zap.Int("checked", res.Checked), zap.Int("revoked", res.Revoked), zap.Int("failed", res.Failed))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}
