// Package runtime hosts the per-room actors, the registries, and the event
// fan-out. It serializes every mutation without containing domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"aethermeet/contract"
	"aethermeet/domain"
	"aethermeet/domain/event"
	"aethermeet/errors"
	"aethermeet/moderation"
)

var _ contract.Worker = (*RoomActor)(nil)

type opEnvelope struct {
	op    domain.Operation
	reply chan error
}

// RoomActor owns one room's state exclusively. All operations for the room
// are funneled through its queue and executed one at a time, in arrival
// order. This is what prevents two concurrent joins from both slipping past
// the quorum check.
//
// The in-memory mutation and the broadcast ordering commit before the next
// operation is accepted. If the persistence write fails, the room is rolled
// back to the pre-operation snapshot and nothing is broadcast.
type RoomActor struct {
	room       *domain.Room
	lifecycle  *domain.MembershipLifecycle
	admission  *domain.AdmissionController
	enforcer   *domain.ModerationEnforcer
	censor     *moderation.Moderator
	repo       contract.RoomRepository
	events     chan<- event.DomainEvent
	ops        chan opEnvelope
	done       chan struct{}
	onTerminal func(code string)
	log        *slog.Logger
}

func NewRoomActor(
	room *domain.Room,
	lifecycle *domain.MembershipLifecycle,
	admission *domain.AdmissionController,
	enforcer *domain.ModerationEnforcer,
	censor *moderation.Moderator,
	repo contract.RoomRepository,
	events chan<- event.DomainEvent,
	queueSize int,
	onTerminal func(code string),
	log *slog.Logger,
) *RoomActor {
	return &RoomActor{
		room:       room,
		lifecycle:  lifecycle,
		admission:  admission,
		enforcer:   enforcer,
		censor:     censor,
		repo:       repo,
		events:     events,
		ops:        make(chan opEnvelope, queueSize),
		done:       make(chan struct{}),
		onTerminal: onTerminal,
		log:        log,
	}
}

// Do submits an operation and waits for its synchronous outcome.
//
// A send can race the actor's retirement: both the queue and the closed done
// channel may be ready, and the select is free to pick the send. Waiting on
// done as well keeps such a caller from hanging on a reply that will never
// come. The reply channel is buffered and always written before done closes,
// so when done is closed an executed operation still has its reply waiting.
func (a *RoomActor) Do(ctx context.Context, op domain.Operation) error {
	env := opEnvelope{op: op, reply: make(chan error, 1)}
	select {
	case a.ops <- env:
	case <-a.done:
		return errors.ErrRoomTerminal
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-env.reply:
		return err
	case <-a.done:
		select {
		case err := <-env.reply:
			return err
		default:
			return errors.ErrRoomTerminal
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the operation queue until the context ends or the room turns
// terminal. Queued operations behind a destroy still get a reply.
func (a *RoomActor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(a.done)
			return ctx.Err()
		case env := <-a.ops:
			env.reply <- a.handle(env.op)
			if !a.room.Active {
				a.retire()
				return nil
			}
		}
	}
}

// retire rejects whatever is still queued, signals the registry, and closes
// the intake so late callers fail fast instead of blocking.
func (a *RoomActor) retire() {
	if a.onTerminal != nil {
		a.onTerminal(a.room.Code)
	}
	close(a.done)
	for {
		select {
		case env := <-a.ops:
			env.reply <- errors.ErrRoomTerminal
		default:
			a.log.Info("room actor retired", "room", a.room.Code)
			return
		}
	}
}

// handle runs one operation: mutate, flush the outbox, persist, broadcast.
// Any failure leaves the room exactly as it was before the operation.
func (a *RoomActor) handle(op domain.Operation) (err error) {
	if !a.room.Active {
		return errors.ErrRoomTerminal
	}

	prev := a.room.Clone()
	defer func() {
		if rec := recover(); rec != nil {
			a.room = prev
			a.log.Error("room operation panicked",
				"room", prev.Code,
				"operation", fmt.Sprintf("%T", op),
				"panic", rec)
			err = errors.ErrInternal
		}
	}()

	if err := a.apply(op); err != nil {
		a.room = prev
		return err
	}

	evts := a.room.FlushEvents()
	if err := a.repo.SaveRoom(a.room); err != nil {
		a.room = prev
		a.log.Error("room persistence failed", "room", prev.Code, "error", err)
		return fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}

	for _, evt := range evts {
		a.events <- evt
	}
	return nil
}

func (a *RoomActor) apply(op domain.Operation) error {
	switch o := op.(type) {
	case domain.JoinOperation:
		decision, err := a.lifecycle.Join(a.room, o.Username)
		if o.Result != nil {
			*o.Result = decision
		}
		return err
	case domain.ResolveOperation:
		return a.admission.Resolve(a.room, o.Target, o.Admit, o.ActingUser)
	case domain.CastVoteOperation:
		return a.admission.CastVote(a.room, o.Target, o.Voter, o.Vote)
	case domain.LeaveOperation:
		return a.lifecycle.Leave(a.room, o.Username, o.Mode)
	case domain.KickOperation:
		return a.lifecycle.Kick(a.room, o.Target, o.ActingUser)
	case domain.ModerateOperation:
		return a.moderate(o)
	case domain.PostMessageOperation:
		content, words := o.Content, []string(nil)
		if a.censor != nil {
			content, words = a.censor.Censor(o.Content)
		}
		return a.lifecycle.PostMessage(a.room, o.Author, content, o.Media, words, o.CreatedAt)
	case domain.SweepOperation:
		a.enforcer.CleanupExpired(a.room)
		return nil
	default:
		return fmt.Errorf("%w: unknown operation %T", errors.ErrInternal, op)
	}
}

func (a *RoomActor) moderate(o domain.ModerateOperation) error {
	switch o.Action {
	case domain.ActionPromote:
		return a.lifecycle.Promote(a.room, o.Target, o.ActingUser)
	case domain.ActionDemote:
		return a.lifecycle.Demote(a.room, o.Target, o.ActingUser)
	default:
		_, err := a.enforcer.Apply(a.room, o.Target, o.ActingUser, o.Action, o.Reason, o.DurationMinutes)
		return err
	}
}
