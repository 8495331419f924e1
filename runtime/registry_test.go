package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"aethermeet/domain/event"
)

type Sink struct {
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_Room_One_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := Sink{}

	// Given no user is connected
	// And no room exists
	req.Empty(registry.Sessions)
	req.Empty(registry.RoomMembers)

	// When a participant subscribes a room
	registry.Subscribe("alice", "ABC123", sink)

	// Then
	req.Len(registry.Sessions, 1)
	req.Equal(sink, registry.Sessions["alice"])

	req.Len(registry.RoomMembers, 1)
	req.Contains(registry.RoomMembers["ABC123"], "alice")

	req.Len(registry.GetSinksForRoom("ABC123"), 1)
	req.Contains(registry.GetSinksForRoom("ABC123"), sink)
}

func TestRegistry_Subscribe_One_Room_Multiple_Participants(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink1 := Sink{}
	sink2 := Sink{}

	// When participants subscribe a room
	registry.Subscribe("alice", "ABC123", sink1)
	registry.Subscribe("bob", "ABC123", sink2)

	// Then
	req.Len(registry.Sessions, 2)
	req.Len(registry.RoomMembers["ABC123"], 2)

	req.Len(registry.GetSinksForRoom("ABC123"), 2)
	req.Contains(registry.GetSinksForRoom("ABC123"), sink1)
}

func TestRegistry_UnSubscribe_One_Room_One_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := Sink{}

	// Given a participant subscribes a room
	registry.Subscribe("alice", "ABC123", sink)

	// When a participant unsubscribe a room
	registry.Unsubscribe("alice", "ABC123")

	// Then no participant left
	// And the room doesn't exist anymore
	req.Empty(registry.Sessions)
	req.Empty(registry.RoomMembers)

	// And no participant connected left in room
	req.Nil(registry.GetSinksForRoom("ABC123"))
}

func TestRegistry_UnsubscribeRoom_Drops_Every_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given two participants in the room
	registry.Subscribe("alice", "ABC123", Sink{})
	registry.Subscribe("bob", "ABC123", Sink{})

	// When the whole room is dropped
	registry.UnsubscribeRoom("ABC123")

	// Then no session and no room topic is left
	req.Empty(registry.Sessions)
	req.Empty(registry.RoomMembers)
	req.Nil(registry.GetSinksForRoom("ABC123"))
}

func TestRegistry_GetSinkForUser(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := Sink{}

	registry.Subscribe("alice", "ABC123", sink)

	found, ok := registry.GetSinkForUser("alice")
	req.True(ok)
	req.Equal(sink, found)

	_, ok = registry.GetSinkForUser("ghost")
	req.False(ok)
}
