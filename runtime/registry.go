package runtime

import (
	"sync"

	"aethermeet/contract"
)

type Set map[string]struct{}

// Registry tracks connected sessions: which sink belongs to which user, and
// which users are watching which room.
type Registry struct {
	mu          sync.RWMutex
	Sessions    map[string]contract.EventSink // map username -> sink
	RoomMembers map[string]Set                // map room code -> usernames
}

func NewRegistry() *Registry {
	return &Registry{
		Sessions:    make(map[string]contract.EventSink),
		RoomMembers: make(map[string]Set),
	}
}

// GetSinksForRoom retrieves all active communication channels for a
// specific room. It performs a two-step lookup:
//  1. Identifies usernames associated with the room via RoomMembers.
//  2. Resolves those usernames into actual EventSinks using Sessions.
//
// This decoupled approach ensures that even if a user watches multiple
// rooms, their connection (sink) is managed in a single place.
// Returns nil if the room doesn't exist or has no members.
func (r *Registry) GetSinksForRoom(code string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.RoomMembers[code]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for username := range members {
		if sink, exists := r.Sessions[username]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// GetSinkForUser resolves a single user's connection, used for direct
// notifications such as a kick or an admission denial.
func (r *Registry) GetSinkForUser(username string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.Sessions[username]
	return sink, ok
}

// Subscribe registers a user's active connection and assigns them to a
// room topic. If the room does not yet exist in the registry, it is
// initialized on the fly.
func (r *Registry) Subscribe(username, code string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Sessions[username] = sink

	if _, ok := r.RoomMembers[code]; !ok {
		r.RoomMembers[code] = make(Set)
	}
	r.RoomMembers[code][username] = struct{}{}
}

// Unsubscribe removes a user from the registry and their room topic.
// It cleans up the session and ensures no empty sets are left in the room
// map to prevent memory leaks over time.
func (r *Registry) Unsubscribe(username, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Sessions, username)

	if members, ok := r.RoomMembers[code]; ok {
		delete(members, username)

		if len(members) == 0 {
			delete(r.RoomMembers, code)
		}
	}
}

// UnsubscribeRoom drops a whole room topic and every session attached to it,
// used when the room itself is destroyed.
func (r *Registry) UnsubscribeRoom(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for username := range r.RoomMembers[code] {
		delete(r.Sessions, username)
	}
	delete(r.RoomMembers, code)
}
