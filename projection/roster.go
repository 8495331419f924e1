// Package projection builds read models from observed events.
// Projections consume the committed event stream and never touch the
// authoritative room state.
package projection

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"aethermeet/domain/event"
)

// Roster maintains a per-room view of current members and owner, fed by the
// fanout worker. Reads come from service goroutines, hence the lock.
type Roster struct {
	mu    sync.RWMutex
	rooms map[string]*roomRoster
}

type roomRoster struct {
	owner   string
	members map[string]struct{}
}

func NewRoster() *Roster {
	return &Roster{rooms: make(map[string]*roomRoster)}
}

func (r *Roster) Consume(_ context.Context, e event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch evt := e.(type) {
	case event.MemberAdmitted:
		r.room(evt.Code).members[evt.Username] = struct{}{}
	case event.MemberLeft:
		delete(r.room(evt.Code).members, evt.Username)
	case event.MemberRemoved:
		delete(r.room(evt.Code).members, evt.Target)
	case event.OwnershipTransferred:
		room := r.room(evt.Code)
		room.owner = evt.NewOwner
		delete(room.members, evt.OldOwner)
	case event.RoomEmpty:
		// The room stays active but nobody is left in it, including the
		// owner who just walked out.
		r.room(evt.Code).members = make(map[string]struct{})
	case event.RoomDestroyed:
		delete(r.rooms, evt.Code)
	}
	return nil
}

// Seed registers a room's bootstrap state, since creation happens before any
// membership event is broadcast.
func (r *Roster) Seed(code, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.room(code)
	room.owner = owner
	room.members[owner] = struct{}{}
}

// Members returns the current member usernames of a room, unordered.
func (r *Roster) Members(code string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	if !ok {
		return nil
	}
	return lo.Keys(room.members)
}

// Owner returns the room owner, or false when the room is unknown.
func (r *Roster) Owner(code string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	if !ok {
		return "", false
	}
	return room.owner, true
}

func (r *Roster) room(code string) *roomRoster {
	room, ok := r.rooms[code]
	if !ok {
		room = &roomRoster{members: make(map[string]struct{})}
		r.rooms[code] = room
	}
	return room
}
