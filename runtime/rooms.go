package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"aethermeet/contract"
	"aethermeet/domain"
	"aethermeet/domain/event"
	"aethermeet/errors"
	"aethermeet/moderation"
)

// RoomRegistry maps room codes to their actors. Actors are created lazily
// on first reference (reloading a persisted snapshot when one exists) and
// retired once the room turns terminal.
//
// The registry's own lock only guards the map: it is never held across a
// room operation, so rooms stay fully parallel with each other.
type RoomRegistry struct {
	mu     sync.RWMutex
	actors map[string]*RoomActor

	lifecycle *domain.MembershipLifecycle
	admission *domain.AdmissionController
	enforcer  *domain.ModerationEnforcer
	censor    *moderation.Moderator
	repo      contract.RoomRepository
	events    chan<- event.DomainEvent
	sup       contract.ISupervisor
	queueSize int
	log       *slog.Logger

	ctx context.Context
}

func NewRoomRegistry(
	lifecycle *domain.MembershipLifecycle,
	admission *domain.AdmissionController,
	enforcer *domain.ModerationEnforcer,
	censor *moderation.Moderator,
	repo contract.RoomRepository,
	events chan<- event.DomainEvent,
	sup contract.ISupervisor,
	queueSize int,
	log *slog.Logger,
) *RoomRegistry {
	return &RoomRegistry{
		actors:    make(map[string]*RoomActor),
		lifecycle: lifecycle,
		admission: admission,
		enforcer:  enforcer,
		censor:    censor,
		repo:      repo,
		events:    events,
		sup:       sup,
		queueSize: queueSize,
		log:       log,
	}
}

// Start records the base context under which actors run.
func (rr *RoomRegistry) Start(ctx context.Context) {
	rr.ctx = ctx
}

// Create activates a brand new room and spawns its actor. The initial
// snapshot is persisted before the actor accepts any operation.
func (rr *RoomRegistry) Create(room *domain.Room) (*RoomActor, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if _, ok := rr.actors[room.Code]; ok {
		return nil, errors.ErrRoomExists
	}
	if _, err := rr.repo.LoadRoom(room.Code); err == nil {
		return nil, errors.ErrRoomExists
	}
	if err := rr.repo.SaveRoom(room); err != nil {
		return nil, err
	}
	return rr.spawn(room), nil
}

// Get returns the actor for a room code, reviving it from the store when
// needed. Destroyed rooms are not revived.
func (rr *RoomRegistry) Get(code string) (*RoomActor, error) {
	rr.mu.RLock()
	actor, ok := rr.actors[code]
	rr.mu.RUnlock()
	if ok {
		return actor, nil
	}

	room, err := rr.repo.LoadRoom(code)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, errors.ErrRoomTerminal
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()
	if actor, ok := rr.actors[code]; ok {
		return actor, nil
	}
	return rr.spawn(room), nil
}

// spawn registers the actor and hands it to the supervisor. Caller holds
// the write lock.
func (rr *RoomRegistry) spawn(room *domain.Room) *RoomActor {
	actor := NewRoomActor(
		room,
		rr.lifecycle,
		rr.admission,
		rr.enforcer,
		rr.censor,
		rr.repo,
		rr.events,
		rr.queueSize,
		rr.retire,
		rr.log,
	)
	rr.actors[room.Code] = actor
	rr.sup.Start(rr.ctx, actor)
	rr.log.Info("room actor started", "room", room.Code)
	return actor
}

func (rr *RoomRegistry) retire(code string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.actors, code)
}

// Codes lists the rooms that currently have a live actor.
func (rr *RoomRegistry) Codes() []string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return lo.Keys(rr.actors)
}

func (rr *RoomRegistry) Count() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.actors)
}
