package workers

import (
	"context"
	"log/slog"
	"time"

	"aethermeet/contract"
	"aethermeet/domain/event"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout delivers committed domain events to their audience: permanent
// sinks (history, projections), the sessions subscribed to the room, and,
// for direct events, the targeted user's own session.
//
// It runs as a single goroutine consuming one FIFO channel, which preserves
// the per-room emission order end to end. A sink that does not consume
// within the timeout is skipped for that event.
type EventFanout struct {
	log         *slog.Logger
	registry    contract.IRegistry
	sinks       []contract.EventSink
	events      <-chan event.DomainEvent
	telemetry   chan<- event.DomainEvent
	sinkTimeout time.Duration
}

func NewEventFanout(
	log *slog.Logger,
	registry contract.IRegistry,
	events <-chan event.DomainEvent,
	telemetry chan<- event.DomainEvent,
	sinkTimeout time.Duration,
) *EventFanout {
	return &EventFanout{
		log:         log,
		registry:    registry,
		events:      events,
		telemetry:   telemetry,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
			select {
			case w.telemetry <- evt:
			default:
				w.log.Debug("Observability telemetry event lost")
			}
		}
	}
}

// Fanout delivers one event to every interested sink.
// Failed attempts are never broadcast by the engine, so everything arriving
// here is a committed state transition.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		w.consume(ctx, sink, evt)
	}

	if direct, ok := evt.(event.DirectEvent); ok {
		if sink, found := w.registry.GetSinkForUser(direct.TargetUser()); found {
			w.consume(ctx, sink, evt)
		}
		w.evict(evt)
		return
	}

	for _, sink := range w.registry.GetSinksForRoom(evt.RoomCode()) {
		w.consume(ctx, sink, evt)
	}
	w.evict(evt)
}

// evict revokes subscriptions that an event just invalidated. It runs after
// delivery so a kicked user still receives their own removal notice before
// the stream goes silent for them.
func (w *EventFanout) evict(evt event.DomainEvent) {
	switch e := evt.(type) {
	case event.RemovedFromRoom:
		w.registry.Unsubscribe(e.Target, e.Code)
	case event.AdmissionDenied:
		w.registry.Unsubscribe(e.Username, e.Code)
	case event.RoomDestroyed:
		w.registry.UnsubscribeRoom(e.Code)
	}
}

func (w *EventFanout) consume(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, evt); err != nil {
		w.log.Warn("sink dropped event",
			"event", evt.Name(),
			"room", evt.RoomCode(),
			"error", err)
	}
}
