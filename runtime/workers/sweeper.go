package workers

import (
	"context"
	"log/slog"
	"time"

	"aethermeet/domain"
)

// Dispatcher submits an operation to a room's actor.
type Dispatcher interface {
	Dispatch(ctx context.Context, op domain.Operation) error
	Codes() []string
}

// SweeperWorker periodically asks every live room to drop expired
// moderation entries. Queries already apply lazy expiry, so this only
// reclaims memory; correctness never depends on the sweep.
type SweeperWorker struct {
	dispatcher Dispatcher
	interval   time.Duration
	log        *slog.Logger
}

func NewSweeperWorker(dispatcher Dispatcher, interval time.Duration, log *slog.Logger) *SweeperWorker {
	return &SweeperWorker{dispatcher: dispatcher, interval: interval, log: log}
}

func (w *SweeperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping sweeper worker")
			return ctx.Err()
		case <-ticker.C:
			for _, code := range w.dispatcher.Codes() {
				if err := w.dispatcher.Dispatch(ctx, domain.SweepOperation{Code: code}); err != nil {
					w.log.Debug("sweep skipped", "room", code, "error", err)
				}
			}
		}
	}
}
