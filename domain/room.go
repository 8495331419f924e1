// Package domain contains the authoritative room state and the rules that
// mutate it: admission, membership lifecycle, and moderation.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"crypto/rand"
	"sort"
	"time"

	"github.com/samber/lo"

	"aethermeet/domain/event"
)

type AdmissionPolicy string

const (
	PolicyInstant       AdmissionPolicy = "instant"
	PolicyOwnerApproval AdmissionPolicy = "owner_approval"
	PolicyDemocratic    AdmissionPolicy = "democratic_voting"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the fixed length of a room code.
const CodeLength = 6

// NewRoomCode returns a random 6-character uppercase alphanumeric code.
func NewRoomCode() string {
	buf := make([]byte, CodeLength)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// Room is the in-memory authoritative snapshot of one active room.
// It is owned exclusively by its actor: no internal locking, all mutation
// goes through the lifecycle, admission, and enforcer components.
//
// State changes are recorded in an outbox and flushed by the actor after
// the operation commits, so that an aborted operation never broadcasts.
type Room struct {
	Code      string
	Owner     string
	Policy    AdmissionPolicy
	IsDemo    bool
	Active    bool
	CreatedAt time.Time

	members      map[string]Member
	pending      map[string]*PendingAdmission
	moderators   map[string]struct{}
	restrictions map[RestrictionKind]map[string]RestrictionEntry
	auditLog     []AuditEntry

	outbox []event.DomainEvent
}

// NewRoom activates a room with its bootstrap owner as the first member.
func NewRoom(code, owner string, policy AdmissionPolicy, isDemo bool, now time.Time) *Room {
	r := &Room{
		Code:      code,
		Owner:     owner,
		Policy:    policy,
		IsDemo:    isDemo,
		Active:    true,
		CreatedAt: now,

		members:      make(map[string]Member),
		pending:      make(map[string]*PendingAdmission),
		moderators:   make(map[string]struct{}),
		restrictions: emptyRestrictions(),
	}
	r.members[owner] = Member{Username: owner, JoinedAt: now}
	return r
}

func emptyRestrictions() map[RestrictionKind]map[string]RestrictionEntry {
	return map[RestrictionKind]map[string]RestrictionEntry{
		RestrictionMuted:  make(map[string]RestrictionEntry),
		RestrictionBanned: make(map[string]RestrictionEntry),
		RestrictionMedia:  make(map[string]RestrictionEntry),
	}
}

func (r *Room) HasMember(username string) bool {
	_, ok := r.members[username]
	return ok
}

func (r *Room) MemberCount() int { return len(r.members) }

// Members returns a copy of the member set, ordered by join time.
func (r *Room) Members() []Member {
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sortMembersByJoin(out)
	return out
}

func (r *Room) Pending(username string) (*PendingAdmission, bool) {
	p, ok := r.pending[username]
	return p, ok
}

func (r *Room) PendingCount() int { return len(r.pending) }

// IsModerator reports whether username holds the moderator role.
// The owner is implicitly a moderator and cannot lose the role.
func (r *Room) IsModerator(username string) bool {
	if username == r.Owner {
		return true
	}
	_, ok := r.moderators[username]
	return ok
}

func (r *Room) AuditLog() []AuditEntry {
	out := make([]AuditEntry, len(r.auditLog))
	copy(out, r.auditLog)
	return out
}

// Emit appends an event to the outbox. The actor flushes the outbox only
// after the whole operation has committed.
func (r *Room) Emit(e event.DomainEvent) {
	r.outbox = append(r.outbox, e)
}

// FlushEvents drains the outbox preserving emission order.
func (r *Room) FlushEvents() []event.DomainEvent {
	out := r.outbox
	r.outbox = nil
	return out
}

// Clone deep-copies the room so the actor can roll back after a failed
// persistence write. The outbox is not carried over.
func (r *Room) Clone() *Room {
	c := &Room{
		Code:      r.Code,
		Owner:     r.Owner,
		Policy:    r.Policy,
		IsDemo:    r.IsDemo,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,

		members:      make(map[string]Member, len(r.members)),
		pending:      make(map[string]*PendingAdmission, len(r.pending)),
		moderators:   make(map[string]struct{}, len(r.moderators)),
		restrictions: emptyRestrictions(),
		auditLog:     make([]AuditEntry, len(r.auditLog)),
	}
	for k, v := range r.members {
		c.members[k] = v
	}
	for k, v := range r.pending {
		c.pending[k] = v.clone()
	}
	for k := range r.moderators {
		c.moderators[k] = struct{}{}
	}
	for kind, entries := range r.restrictions {
		for k, v := range entries {
			c.restrictions[kind][k] = v
		}
	}
	copy(c.auditLog, r.auditLog)
	return c
}

// addMember inserts a member and clears any pending admission, keeping the
// "at most one of members/pending" invariant.
func (r *Room) addMember(username string, now time.Time) {
	delete(r.pending, username)
	r.members[username] = Member{Username: username, JoinedAt: now}
}

func (r *Room) removeMember(username string) {
	delete(r.members, username)
	delete(r.moderators, username)
}

// earliestJoined returns the longest-standing member excluding the given
// username, used for ownership succession. Ties resolve by username so the
// successor is deterministic.
func (r *Room) earliestJoined(excluding string) (Member, bool) {
	candidates := lo.Filter(lo.Values(r.members), func(m Member, _ int) bool {
		return m.Username != excluding
	})
	if len(candidates) == 0 {
		return Member{}, false
	}
	best := lo.MinBy(candidates, func(a, b Member) bool {
		if a.JoinedAt.Equal(b.JoinedAt) {
			return a.Username < b.Username
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})
	return best, true
}

func sortMembersByJoin(members []Member) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].Username < members[j].Username
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
}
