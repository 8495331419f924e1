package services

import (
	"context"
	goerrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"aethermeet/auth"
	"aethermeet/domain"
	"aethermeet/domain/event"
	"aethermeet/errors"
	"aethermeet/repositories"
	"aethermeet/runtime"
	"aethermeet/runtime/workers"
)

// newTestRoomService boots the real engine over a throwaway badger store.
func newTestRoomService(t *testing.T) *RoomService {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := testLogger()
	supervisor := workers.NewSupervisor(log, time.Second)
	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(
		log,
		supervisor,
		registry,
		repositories.NewRoomRepository(db),
		repositories.NewMessageRepository(db, log, nil),
		runtime.Options{
			BufferSize:      64,
			RoomQueueSize:   64,
			RoomCapacity:    10,
			SinkTimeout:     time.Second,
			SweepInterval:   time.Minute,
			MetricInterval:  time.Minute,
			CharReplacement: '*',
		},
	)

	credentials := NewCredentialService(
		repositories.NewCredentialStore(db),
		auth.NewTokenManager("test-secret", time.Hour),
	)
	orchestrator.Add(NewCredentialJanitor(credentials, log))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, orchestrator.Start(ctx))
	t.Cleanup(func() {
		cancel()
		orchestrator.Stop()
	})

	return NewRoomService(orchestrator, credentials)
}

func Test_CreateRoom_Returns_A_Code_And_A_Session_Token(t *testing.T) {
	req := require.New(t)
	service := newTestRoomService(t)

	created, err := service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username: "alice",
		Policy:   string(domain.PolicyInstant),
	})
	req.NoError(err)
	req.Len(created.Code, domain.CodeLength)
	req.NotEmpty(created.Token)

	req.Equal([]string{"alice"}, service.Roster(created.Code))
}

func Test_CreateRoom_Rejects_Invalid_Input(t *testing.T) {
	req := require.New(t)
	service := newTestRoomService(t)

	_, err := service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username: "a",
		Policy:   string(domain.PolicyInstant),
	})
	req.Error(err)

	_, err = service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username: "alice",
		Policy:   "open_bar",
	})
	req.Error(err)
}

func Test_Join_An_Instant_Room(t *testing.T) {
	req := require.New(t)
	service := newTestRoomService(t)
	created, err := service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username: "alice",
		Policy:   string(domain.PolicyInstant),
	})
	req.NoError(err)

	decision, token, err := service.Join(context.Background(), auth.JoinRoomRequest{
		Code:     created.Code,
		Username: "bob",
	})
	req.NoError(err)
	req.Equal(domain.DecisionAdmit, decision)
	req.NotEmpty(token)

	// The roster projection catches up once the event is fanned out
	req.Eventually(func() bool {
		return len(service.Roster(created.Code)) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Join_A_Protected_Room(t *testing.T) {
	req := require.New(t)
	service := newTestRoomService(t)
	created, err := service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username:   "alice",
		Policy:     string(domain.PolicyInstant),
		Passphrase: strPtr("hunter2"),
	})
	req.NoError(err)

	_, _, err = service.Join(context.Background(), auth.JoinRoomRequest{
		Code:       created.Code,
		Username:   "bob",
		Passphrase: strPtr("wrong"),
	})
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	_, _, err = service.Join(context.Background(), auth.JoinRoomRequest{
		Code:     created.Code,
		Username: "bob",
	})
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	decision, _, err := service.Join(context.Background(), auth.JoinRoomRequest{
		Code:       created.Code,
		Username:   "bob",
		Passphrase: strPtr("hunter2"),
	})
	req.NoError(err)
	req.Equal(domain.DecisionAdmit, decision)
}

func Test_Owner_Approval_Flow(t *testing.T) {
	req := require.New(t)
	service := newTestRoomService(t)
	created, err := service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username: "alice",
		Policy:   string(domain.PolicyOwnerApproval),
	})
	req.NoError(err)

	decision, _, err := service.Join(context.Background(), auth.JoinRoomRequest{
		Code:     created.Code,
		Username: "bob",
	})
	req.NoError(err)
	req.Equal(domain.DecisionPending, decision)

	req.NoError(service.Resolve(context.Background(), created.Code, "bob", "alice", true))
	req.Eventually(func() bool {
		return len(service.Roster(created.Code)) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Posted_Messages_Reach_The_Archive_Censored(t *testing.T) {
	req := require.New(t)
	service := newTestRoomService(t)
	created, err := service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username: "alice",
		Policy:   string(domain.PolicyInstant),
	})
	req.NoError(err)

	req.NoError(service.PostMessage(context.Background(), created.Code, "alice", "what a stupid idea", false))

	// The disk sink persists asynchronously, behind the fanout
	req.Eventually(func() bool {
		messages, _, err := service.Messages(created.Code, nil)
		return err == nil && len(messages) == 1
	}, 2*time.Second, 10*time.Millisecond)

	messages, _, err := service.Messages(created.Code, nil)
	req.NoError(err)
	req.Equal("what a ****** idea", messages[0].Content)
	req.Equal("alice", messages[0].Author)
}

// recordingSink collects every event a session receives.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.Name())
	}
	return names
}

func Test_A_Denied_Join_Issues_No_Token(t *testing.T) {
	req := require.New(t)
	service := newTestRoomService(t)
	created, err := service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username: "alice",
		Policy:   string(domain.PolicyInstant),
	})
	req.NoError(err)

	// bob joins, gets banned, and tries to come back
	_, _, err = service.Join(context.Background(), auth.JoinRoomRequest{Code: created.Code, Username: "bob"})
	req.NoError(err)
	req.NoError(service.Moderate(context.Background(), created.Code, "bob", "alice", domain.ActionBan, "abuse", nil))

	decision, token, err := service.Join(context.Background(), auth.JoinRoomRequest{Code: created.Code, Username: "bob"})
	req.NoError(err)
	req.Equal(domain.DecisionDeny, decision)
	req.Empty(token)
}

func Test_Authorize_Admits_Members_And_Pending_Only(t *testing.T) {
	req := require.New(t)
	service := newTestRoomService(t)
	created, err := service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username: "alice",
		Policy:   string(domain.PolicyOwnerApproval),
	})
	req.NoError(err)

	decision, _, err := service.Join(context.Background(), auth.JoinRoomRequest{Code: created.Code, Username: "bob"})
	req.NoError(err)
	req.Equal(domain.DecisionPending, decision)

	// The owner and the pending requester may attach to the stream
	req.NoError(service.Authorize(created.Code, "alice"))
	req.NoError(service.Authorize(created.Code, "bob"))

	// A token holder from some other room may not
	req.ErrorIs(service.Authorize(created.Code, "mallory"), errors.ErrUnauthorized)
}

func Test_A_Kicked_User_Stops_Receiving_Broadcasts(t *testing.T) {
	req := require.New(t)
	service := newTestRoomService(t)
	created, err := service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username: "alice",
		Policy:   string(domain.PolicyInstant),
	})
	req.NoError(err)
	_, _, err = service.Join(context.Background(), auth.JoinRoomRequest{Code: created.Code, Username: "bob"})
	req.NoError(err)

	bobSink := &recordingSink{}
	service.Subscribe("bob", created.Code, bobSink)

	req.NoError(service.Kick(context.Background(), created.Code, "bob", "alice"))

	// bob gets his own removal notice, then the stream goes silent for him
	req.Eventually(func() bool {
		return lo.Contains(bobSink.names(), "removed_from_room")
	}, 2*time.Second, 10*time.Millisecond)

	req.NoError(service.PostMessage(context.Background(), created.Code, "alice", "bob is gone", false))
	req.Eventually(func() bool {
		messages, _, err := service.Messages(created.Code, nil)
		return err == nil && len(messages) == 1
	}, 2*time.Second, 10*time.Millisecond)

	req.NotContains(bobSink.names(), "message_posted")
}

func Test_Destroying_A_Room_Drops_Its_Secret(t *testing.T) {
	req := require.New(t)
	service := newTestRoomService(t)
	created, err := service.CreateRoom(context.Background(), auth.CreateRoomRequest{
		Username:   "alice",
		Policy:     string(domain.PolicyInstant),
		Passphrase: strPtr("hunter2"),
	})
	req.NoError(err)

	req.NoError(service.Leave(context.Background(), created.Code, "alice", domain.LeaveDestroy))

	// The janitor runs behind the fanout; once it has dropped the secret, a
	// passphrase-less join gets past credentials and hits the dead room
	req.Eventually(func() bool {
		_, _, err := service.Join(context.Background(), auth.JoinRoomRequest{
			Code:     created.Code,
			Username: "bob",
		})
		return goerrors.Is(err, errors.ErrRoomTerminal)
	}, 2*time.Second, 10*time.Millisecond)

	req.Nil(service.Roster(created.Code))
}
