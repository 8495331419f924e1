package domain

import (
	"time"

	"github.com/google/uuid"
)

type RestrictionKind string

const (
	RestrictionMuted  RestrictionKind = "muted"
	RestrictionBanned RestrictionKind = "banned"
	RestrictionMedia  RestrictionKind = "media_restricted"
)

// RestrictionEntry is one TTL-tagged moderation record.
// Permanent entries never expire; the others carry an absolute deadline.
type RestrictionEntry struct {
	Username  string
	AppliedAt time.Time
	ExpiresAt time.Time
	Permanent bool
}

// ActiveAt reports whether the entry is still in force.
// Expired entries are treated as absent even before a sweep removed them.
func (e RestrictionEntry) ActiveAt(now time.Time) bool {
	return e.Permanent || now.Before(e.ExpiresAt)
}

type ModerationAction string

const (
	ActionWarn          ModerationAction = "warn"
	ActionMute          ModerationAction = "mute"
	ActionKick          ModerationAction = "kick"
	ActionBan           ModerationAction = "ban"
	ActionRestrictMedia ModerationAction = "restrict_media"
	ActionPromote       ModerationAction = "promote"
	ActionDemote        ModerationAction = "demote"
)

// AuditEntry records one successful moderation action.
// The audit log is append-only and never pruned by the engine.
type AuditEntry struct {
	ID        uuid.UUID
	Target    string
	Moderator string
	Action    ModerationAction
	Reason    string
	Duration  *time.Duration
	At        time.Time
}
