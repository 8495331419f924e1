package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"aethermeet/domain/event"
	"aethermeet/observability"
)

// RoomCounter exposes how many room actors are currently live.
type RoomCounter interface {
	Count() int
}

// StatsWorker tallies broadcast events from the telemetry tap and logs an
// engine snapshot on every tick.
type StatsWorker struct {
	log       *slog.Logger
	monitor   *observability.Monitor
	rooms     RoomCounter
	telemetry <-chan event.DomainEvent
	interval  time.Duration
}

func NewStatsWorker(
	log *slog.Logger,
	monitor *observability.Monitor,
	rooms RoomCounter,
	telemetry <-chan event.DomainEvent,
	interval time.Duration,
) *StatsWorker {
	return &StatsWorker{
		log:       log,
		monitor:   monitor,
		rooms:     rooms,
		telemetry: telemetry,
		interval:  interval,
	}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping stats worker")
			return ctx.Err()
		case evt := <-w.telemetry:
			w.monitor.CountEvent(evt.Name())
		case <-ticker.C:
			rss, cpu := w.monitor.SelfStats()
			w.log.Info("engine stats",
				"rooms", w.rooms.Count(),
				"ops", atomic.LoadUint64(&w.monitor.OpsDispatched),
				"events", atomic.LoadUint64(&w.monitor.EventsBroadcast),
				"persistence_fails", atomic.LoadUint64(&w.monitor.PersistenceFails),
				"rss_mb", rss/1024/1024,
				"cpu_percent", cpu)
		}
	}
}
