package sink

import (
	"context"
	"fmt"
	"log/slog"

	"aethermeet/domain/event"
	"aethermeet/repositories"
)

// DiskSink archives every posted message. It is registered as a permanent
// sink, so it receives events in their committed order.
type DiskSink struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewDiskSink(repository repositories.IMessageRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePosted:
		return d.repository.StoreMessage(toDiskMessage(evt))
	default:
		d.log.Debug(fmt.Sprintf("Not implemented event : %v", evt))
		return nil
	}
}

func toDiskMessage(event event.MessagePosted) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:      event.ID,
		Room:    event.Code,
		Author:  event.Author,
		Content: event.Content,
		Media:   event.Media,
		At:      event.At,
	}
}
