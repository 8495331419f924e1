package domain

import (
	"time"

	"aethermeet/errors"
)

// SystemActor is the acting user for engine-initiated moderation. It can
// moderate the owner, which no human moderator may do.
const SystemActor = "system"

// ModerationEnforcer applies and queries moderation actions against a room.
// All TTL entries carry an absolute expiry; queries use lazy expiry and
// never mutate state, only CleanupExpired removes stale entries.
type ModerationEnforcer struct {
	now func() time.Time
}

func NewModerationEnforcer(now func() time.Time) *ModerationEnforcer {
	if now == nil {
		now = time.Now
	}
	return &ModerationEnforcer{now: now}
}

// Apply executes a moderation action and appends it to the audit log.
// A nil duration means permanent for the TTL-backed actions.
func (e *ModerationEnforcer) Apply(r *Room, target, actingUser string, action ModerationAction, reason string, durationMinutes *int) (AuditEntry, error) {
	e.CleanupExpired(r)

	if actingUser != SystemActor && actingUser != r.Owner && !r.IsModerator(actingUser) {
		return AuditEntry{}, errors.ErrUnauthorized
	}
	if actingUser == target {
		return AuditEntry{}, errors.ErrInvalidTarget
	}
	if target == r.Owner && actingUser != SystemActor {
		return AuditEntry{}, errors.ErrInvalidTarget
	}

	switch action {
	case ActionWarn:
		// Audit only, no state change.
	case ActionMute:
		e.upsert(r, RestrictionMuted, target, durationMinutes)
	case ActionRestrictMedia:
		e.upsert(r, RestrictionMedia, target, durationMinutes)
	case ActionKick:
		// Removal only; nothing persists beyond the audit entry.
		if target == r.Owner {
			return AuditEntry{}, errors.ErrCannotRemoveOwner
		}
		if !r.HasMember(target) {
			return AuditEntry{}, errors.ErrNotFound
		}
		removeAndNotify(r, target, actingUser, "kicked")
	case ActionBan:
		if target == r.Owner {
			return AuditEntry{}, errors.ErrCannotRemoveOwner
		}
		if r.HasMember(target) {
			removeAndNotify(r, target, actingUser, "banned")
		}
		// A banned user may not linger in the pending set either.
		delete(r.pending, target)
		e.upsert(r, RestrictionBanned, target, durationMinutes)
	default:
		return AuditEntry{}, errors.ErrInvalidTarget
	}

	var duration *time.Duration
	if durationMinutes != nil {
		d := time.Duration(*durationMinutes) * time.Minute
		duration = &d
	}
	return r.appendAudit(target, actingUser, action, reason, duration, e.now()), nil
}

func (e *ModerationEnforcer) upsert(r *Room, kind RestrictionKind, target string, durationMinutes *int) {
	now := e.now()
	entry := RestrictionEntry{
		Username:  target,
		AppliedAt: now,
		Permanent: durationMinutes == nil,
	}
	if durationMinutes != nil {
		entry.ExpiresAt = now.Add(time.Duration(*durationMinutes) * time.Minute)
	}
	r.restrictions[kind][target] = entry
}

func (e *ModerationEnforcer) IsMuted(r *Room, username string) bool {
	return e.isActive(r, RestrictionMuted, username)
}

func (e *ModerationEnforcer) IsBanned(r *Room, username string) bool {
	return e.isActive(r, RestrictionBanned, username)
}

func (e *ModerationEnforcer) IsMediaRestricted(r *Room, username string) bool {
	return e.isActive(r, RestrictionMedia, username)
}

func (e *ModerationEnforcer) isActive(r *Room, kind RestrictionKind, username string) bool {
	entry, ok := r.restrictions[kind][username]
	return ok && entry.ActiveAt(e.now())
}

// CleanupExpired drops every restriction whose deadline passed. Returns the
// number of removed entries.
func (e *ModerationEnforcer) CleanupExpired(r *Room) int {
	now := e.now()
	removed := 0
	for _, entries := range r.restrictions {
		for username, entry := range entries {
			if !entry.ActiveAt(now) {
				delete(entries, username)
				removed++
			}
		}
	}
	return removed
}
