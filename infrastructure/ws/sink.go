// Package ws exposes the room engine over HTTP and websocket: unary
// requests as JSON endpoints, real-time delivery as a websocket stream.
package ws

import (
	"context"

	"aethermeet/domain/event"
)

// ConnSink buffers events for one websocket connection. The fanout worker
// pushes into the channel; the connection's write loop drains it.
//
// A full buffer drops the event for this connection instead of stalling the
// whole fanout. The room archive stays authoritative.
type ConnSink struct {
	Events chan event.DomainEvent
}

func NewConnSink(bufferSize int) *ConnSink {
	return &ConnSink{Events: make(chan event.DomainEvent, bufferSize)}
}

func (s *ConnSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
