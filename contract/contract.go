//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"aethermeet/domain"
	"aethermeet/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself: supervision, restart, and panic recovery
// are the supervisor's job.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives broadcast events. A sink must not block longer than
// the fanout timeout or it gets skipped for that event.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks connected sessions and their room subscriptions.
type IRegistry interface {
	GetSinksForRoom(code string) []EventSink
	GetSinkForUser(username string) (EventSink, bool)
	Subscribe(username, code string, sink EventSink)
	Unsubscribe(username, code string)
	UnsubscribeRoom(code string)
}

// RoomRepository is the persistence collaborator. SaveRoom is called from
// within the actor's operation; a failed write aborts the operation.
type RoomRepository interface {
	LoadRoom(code string) (*domain.Room, error)
	SaveRoom(r *domain.Room) error
}
