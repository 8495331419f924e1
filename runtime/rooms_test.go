package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aethermeet/contract"
	"aethermeet/domain"
	"aethermeet/domain/event"
	"aethermeet/errors"
)

// bareSupervisor runs each worker in a plain goroutine, without restarts.
type bareSupervisor struct{}

func (s bareSupervisor) Add(worker ...contract.Worker) contract.ISupervisor { return s }

func (s bareSupervisor) Run(ctx context.Context) {}

func (s bareSupervisor) Start(ctx context.Context, worker contract.Worker) {
	go func() { _ = worker.Run(ctx) }()
}

func (s bareSupervisor) Stop() {}

func newTestRoomRegistry(t *testing.T, repo *memRepository) *RoomRegistry {
	t.Helper()
	clock := func() time.Time { return actorTestTime }
	admission := domain.NewAdmissionController(0, clock)
	enforcer := domain.NewModerationEnforcer(clock)
	lifecycle := domain.NewMembershipLifecycle(admission, enforcer, clock)
	events := make(chan event.DomainEvent, 128)
	go func() {
		for range events {
		}
	}()

	registry := NewRoomRegistry(lifecycle, admission, enforcer, nil, repo, events, bareSupervisor{}, 64, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	registry.Start(ctx)
	return registry
}

func Test_Create_Rejects_A_Duplicate_Code(t *testing.T) {
	req := require.New(t)
	repo := newMemRepository()
	registry := newTestRoomRegistry(t, repo)

	_, err := registry.Create(domain.NewRoom("ABC123", "alice", domain.PolicyInstant, false, actorTestTime))
	req.NoError(err)

	_, err = registry.Create(domain.NewRoom("ABC123", "bob", domain.PolicyInstant, false, actorTestTime))
	req.ErrorIs(err, errors.ErrRoomExists)
}

func Test_Create_Rejects_A_Code_Already_Persisted(t *testing.T) {
	req := require.New(t)
	repo := newMemRepository()
	req.NoError(repo.SaveRoom(domain.NewRoom("ABC123", "alice", domain.PolicyInstant, false, actorTestTime)))
	registry := newTestRoomRegistry(t, repo)

	// The code exists on disk even though no actor is live
	_, err := registry.Create(domain.NewRoom("ABC123", "bob", domain.PolicyInstant, false, actorTestTime))
	req.ErrorIs(err, errors.ErrRoomExists)
}

func Test_Get_Revives_A_Persisted_Room(t *testing.T) {
	req := require.New(t)
	repo := newMemRepository()
	req.NoError(repo.SaveRoom(domain.NewRoom("ABC123", "alice", domain.PolicyInstant, false, actorTestTime)))
	registry := newTestRoomRegistry(t, repo)
	req.Equal(0, registry.Count())

	actor, err := registry.Get("ABC123")
	req.NoError(err)
	req.Equal(1, registry.Count())

	// The revived actor serves operations against the stored state
	req.NoError(actor.Do(context.Background(), domain.JoinOperation{Code: "ABC123", Username: "bob"}))

	// A second Get returns the same live actor
	again, err := registry.Get("ABC123")
	req.NoError(err)
	req.Same(actor, again)
}

func Test_Get_Never_Revives_A_Destroyed_Room(t *testing.T) {
	req := require.New(t)
	repo := newMemRepository()
	registry := newTestRoomRegistry(t, repo)

	actor, err := registry.Create(domain.NewRoom("ABC123", "alice", domain.PolicyInstant, false, actorTestTime))
	req.NoError(err)
	req.NoError(actor.Do(context.Background(), domain.LeaveOperation{
		Code:     "ABC123",
		Username: "alice",
		Mode:     domain.LeaveDestroy,
	}))

	// The retired actor leaves the registry
	req.Eventually(func() bool { return registry.Count() == 0 }, time.Second, 10*time.Millisecond)

	_, err = registry.Get("ABC123")
	req.ErrorIs(err, errors.ErrRoomTerminal)
}

func Test_Get_Unknown_Room(t *testing.T) {
	req := require.New(t)
	registry := newTestRoomRegistry(t, newMemRepository())

	_, err := registry.Get("ZZZZZZ")
	req.ErrorIs(err, errors.ErrNotFound)
}
