package runtime

import (
	"context"
	"embed"
	goerrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"aethermeet/contract"
	"aethermeet/domain"
	"aethermeet/domain/event"
	"aethermeet/errors"
	"aethermeet/moderation"
	"aethermeet/observability"
	"aethermeet/projection"
	"aethermeet/repositories"
	"aethermeet/runtime/workers"
	"aethermeet/sink"
)

//go:embed censored/*
var censoredFolder embed.FS

// Options groups the tunables the orchestrator needs, straight from config.
type Options struct {
	BufferSize      int
	RoomQueueSize   int
	RoomCapacity    int
	SinkTimeout     time.Duration
	SweepInterval   time.Duration
	MetricInterval  time.Duration
	CharReplacement rune
}

// Orchestrator wires the room engine together: the per-room actors, the
// session registry, the fanout pipeline, and the background workers. It is
// the single entry point the outer surfaces talk to.
type Orchestrator struct {
	log               *slog.Logger
	opts              Options
	supervisor        contract.ISupervisor
	registry          contract.IRegistry
	rooms             *RoomRegistry
	roster            *projection.Roster
	monitor           *observability.Monitor
	permanentSinks    []contract.EventSink
	domainEvents      chan event.DomainEvent
	telemetryEvents   chan event.DomainEvent
	roomRepository    contract.RoomRepository
	messageRepository repositories.IMessageRepository
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	registry contract.IRegistry,
	roomRepository contract.RoomRepository,
	messageRepository repositories.IMessageRepository,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		log:               log,
		opts:              opts,
		supervisor:        supervisor,
		registry:          registry,
		roster:            projection.NewRoster(),
		monitor:           observability.NewMonitor(),
		domainEvents:      make(chan event.DomainEvent, opts.BufferSize),
		telemetryEvents:   make(chan event.DomainEvent, opts.BufferSize),
		roomRepository:    roomRepository,
		messageRepository: messageRepository,
	}
}

// Add registers permanent sinks that receive every committed event,
// regardless of room subscriptions. Must be called before Start.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Start prepares the moderation automaton, wires the pipeline, and launches
// the supervised workers. It returns once everything is running.
func (o *Orchestrator) Start(ctx context.Context) error {
	moderator, err := o.prepareModeration("censored", o.opts.CharReplacement)
	if err != nil {
		return err
	}

	now := time.Now
	admission := domain.NewAdmissionController(o.opts.RoomCapacity, now)
	enforcer := domain.NewModerationEnforcer(now)
	lifecycle := domain.NewMembershipLifecycle(admission, enforcer, now)

	o.rooms = NewRoomRegistry(
		lifecycle,
		admission,
		enforcer,
		moderator,
		o.roomRepository,
		o.domainEvents,
		o.supervisor,
		o.opts.RoomQueueSize,
		o.log,
	)
	o.rooms.Start(ctx)

	fanout := workers.NewEventFanout(o.log, o.registry, o.domainEvents, o.telemetryEvents, o.opts.SinkTimeout)
	fanout.Add(o.roster, sink.NewDiskSink(o.messageRepository, o.log))
	fanout.Add(o.permanentSinks...)

	o.supervisor.Add(
		fanout,
		workers.NewSweeperWorker(o, o.opts.SweepInterval, o.log),
		workers.NewStatsWorker(o.log, o.monitor, o.rooms, o.telemetryEvents, o.opts.MetricInterval),
	)

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
	return nil
}

// prepareModeration loads the embedded dictionaries and builds the
// Aho-Corasick automaton.
func (o *Orchestrator) prepareModeration(path string, charReplacement rune) (*moderation.Moderator, error) {
	loader := NewCensoredLoader(censoredFolder)
	data, err := loader.LoadAll(path)
	if err != nil {
		return nil, err
	}

	o.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	moderator, err := moderation.NewModerator(data.Words, charReplacement, o.log)
	if err != nil {
		return nil, err
	}
	return &moderator, nil
}

// CreateRoom activates a new room and spawns its actor.
func (o *Orchestrator) CreateRoom(room *domain.Room) error {
	if _, err := o.rooms.Create(room); err != nil {
		return err
	}
	o.roster.Seed(room.Code, room.Owner)
	return nil
}

// Dispatch routes an operation to its room actor and waits for the outcome.
func (o *Orchestrator) Dispatch(ctx context.Context, op domain.Operation) error {
	actor, err := o.rooms.Get(op.RoomCode())
	if err != nil {
		return err
	}
	o.monitor.IncrOps()

	err = actor.Do(ctx, op)
	if goerrors.Is(err, errors.ErrPersistenceFailed) {
		o.monitor.IncrPersistenceFail()
	}
	return err
}

// Codes lists the rooms with a live actor, for the sweeper.
func (o *Orchestrator) Codes() []string {
	return o.rooms.Codes()
}

// GetRoom loads the current room snapshot, bypassing the actor. Reads are
// allowed to race with operations since snapshots are immutable once stored.
func (o *Orchestrator) GetRoom(code string) (*domain.Room, error) {
	return o.roomRepository.LoadRoom(code)
}

// GetMessages pages through a room's archived messages, newest first.
func (o *Orchestrator) GetMessages(code string, cursor *string) ([]domain.Message, *string, error) {
	messages, next, err := o.messageRepository.GetMessages(code, cursor)
	return fromDiskMessages(messages), next, err
}

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:        item.ID,
			Author:    item.Author,
			Content:   item.Content,
			Media:     item.Media,
			CreatedAt: item.At,
		}
	})
}

// Roster returns the projected member list of a room.
func (o *Orchestrator) Roster(code string) []string {
	return o.roster.Members(code)
}

// RegisterParticipant attaches a connected session to a room's broadcast
// audience.
func (o *Orchestrator) RegisterParticipant(username, code string, s contract.EventSink) {
	o.registry.Subscribe(username, code, s)
}

// UnregisterParticipant detaches a session. The user's room membership is
// untouched: a dropped connection is not a leave.
func (o *Orchestrator) UnregisterParticipant(username, code string) {
	o.registry.Unsubscribe(username, code)
}

// Stop cancels the supervision context, letting workers drain and exit.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
