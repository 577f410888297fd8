package main

import (
	"context"
	"time"
)

// reconcilePendingOrders re-checks stale pending orders with Paystack so a
// missed webhook or an abandoned tab does not leave them pending forever.
func (app *application) reconcilePendingOrders(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		// Run once immediately
		app.runReconcile(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.runReconcile(ctx)
			}
		}
	}()
}

func (app *application) runReconcile(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	rep, err := app.checkout.ReconcilePending(runCtx, time.Now())
	if err != nil {
		app.logger.Errorw("reconcile pending orders failed", "error", err)
		return
	}
	if rep.Checked > 0 {
		app.logger.Infow("reconciled pending orders",
			"checked", rep.Checked, "settled", rep.Settled, "failed", rep.Failed, "cancelled", rep.Cancelled)
	}
}

type sweeper interface {
	Sweep() int
}

// sweepRateLimiter drops expired limiter windows so the map stays bounded.
func (app *application) sweepRateLimiter(ctx context.Context, every time.Duration) {
	s, ok := app.rateLimiter.(sweeper)
	if !ok {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					app.logger.Debugw("rate limiter swept", "removed", n)
				}
			}
		}
	}()
}
