package domain

import (
	"time"

	"github.com/google/uuid"

	"aethermeet/domain/event"
	"aethermeet/errors"
)

// MembershipLifecycle orchestrates join, leave, ownership transfer, and
// destruction transitions. It delegates admission decisions to the
// AdmissionController and restriction checks to the ModerationEnforcer.
type MembershipLifecycle struct {
	admission *AdmissionController
	enforcer  *ModerationEnforcer
	now       func() time.Time
}

func NewMembershipLifecycle(admission *AdmissionController, enforcer *ModerationEnforcer, now func() time.Time) *MembershipLifecycle {
	if now == nil {
		now = time.Now
	}
	return &MembershipLifecycle{admission: admission, enforcer: enforcer, now: now}
}

// Join processes a join request whose credentials were already validated.
// A Deny outcome is not an error: the requester alone is notified through
// an AdmissionDenied event.
func (l *MembershipLifecycle) Join(r *Room, username string) (Decision, error) {
	decision, err := l.admission.Decide(r, username)
	if err != nil {
		return "", err
	}

	switch decision {
	case DecisionAdmit:
		l.admission.admit(r, username)
	case DecisionPending:
		r.Emit(event.AdmissionRequested{
			Code:     r.Code,
			Username: username,
			Policy:   string(r.Policy),
			At:       l.now(),
		})
	}
	return decision, nil
}

// Leave handles the three departure modes.
//
// The owner of a populated room must pick transfer or destroy: a plain
// leave would strand the room without an owner.
func (l *MembershipLifecycle) Leave(r *Room, username string, mode LeaveMode) error {
	switch mode {
	case LeaveDestroy:
		return l.destroyRequested(r, username)
	case LeaveTransfer:
		return l.transfer(r, username)
	default:
		return l.leave(r, username)
	}
}

func (l *MembershipLifecycle) destroyRequested(r *Room, username string) error {
	if !r.HasMember(username) {
		return errors.ErrNotFound
	}
	// Demo rooms may be destroyed by any member.
	if username != r.Owner && !r.IsDemo {
		return errors.ErrUnauthorized
	}
	l.destroy(r, "destroyed by "+username)
	return nil
}

func (l *MembershipLifecycle) transfer(r *Room, username string) error {
	if username != r.Owner || r.IsDemo {
		return errors.ErrUnauthorized
	}

	successor, ok := r.earliestJoined(username)
	r.removeMember(username)
	if !ok {
		l.destroy(r, "no successor")
		return nil
	}

	oldOwner := r.Owner
	r.Owner = successor.Username
	r.Emit(event.OwnershipTransferred{
		Code:     r.Code,
		OldOwner: oldOwner,
		NewOwner: successor.Username,
	})
	return nil
}

func (l *MembershipLifecycle) leave(r *Room, username string) error {
	if !r.HasMember(username) {
		return errors.ErrNotFound
	}
	if username == r.Owner && r.MemberCount() > 1 {
		return errors.ErrCannotRemoveOwner
	}

	r.removeMember(username)
	if r.MemberCount() == 0 {
		if r.IsDemo {
			l.destroy(r, "last member left")
			return nil
		}
		r.Emit(event.RoomEmpty{Code: r.Code})
		return nil
	}
	r.Emit(event.MemberLeft{Code: r.Code, Username: username, MemberCount: r.MemberCount()})
	return nil
}

// Kick removes a member on the owner's request.
func (l *MembershipLifecycle) Kick(r *Room, target, actingUser string) error {
	if actingUser != r.Owner {
		return errors.ErrUnauthorized
	}
	if target == r.Owner {
		return errors.ErrCannotRemoveOwner
	}
	if !r.HasMember(target) {
		return errors.ErrNotFound
	}
	removeAndNotify(r, target, actingUser, "kicked")
	return nil
}

// Promote grants the moderator role to a member. Owner only; the owner is
// implicitly a moderator already.
func (l *MembershipLifecycle) Promote(r *Room, target, actingUser string) error {
	if actingUser != r.Owner {
		return errors.ErrUnauthorized
	}
	if target == r.Owner || !r.HasMember(target) {
		return errors.ErrInvalidTarget
	}
	r.moderators[target] = struct{}{}
	r.appendAudit(target, actingUser, ActionPromote, "", nil, l.now())
	return nil
}

// Demote revokes the moderator role. The owner cannot be demoted.
func (l *MembershipLifecycle) Demote(r *Room, target, actingUser string) error {
	if actingUser != r.Owner {
		return errors.ErrUnauthorized
	}
	if target == r.Owner {
		return errors.ErrInvalidTarget
	}
	delete(r.moderators, target)
	r.appendAudit(target, actingUser, ActionDemote, "", nil, l.now())
	return nil
}

// PostMessage relays chat content through the room, enforcing mutes and
// media restrictions. Content is expected to be censored already.
func (l *MembershipLifecycle) PostMessage(r *Room, author, content string, media bool, censoredWords []string, at time.Time) error {
	if !r.HasMember(author) {
		return errors.ErrUnauthorized
	}
	if l.enforcer.IsMuted(r, author) {
		return errors.ErrMuted
	}
	if media && l.enforcer.IsMediaRestricted(r, author) {
		return errors.ErrMediaRestricted
	}

	r.Emit(event.MessagePosted{
		ID:            uuid.New(),
		Code:          r.Code,
		Author:        author,
		Content:       content,
		Media:         media,
		CensoredWords: censoredWords,
		At:            at,
	})
	return nil
}

// destroy makes the room terminal. No operation is accepted afterwards.
func (l *MembershipLifecycle) destroy(r *Room, reason string) {
	r.Active = false
	r.Emit(event.RoomDestroyed{Code: r.Code, Reason: reason})
}

func removeAndNotify(r *Room, target, actingUser, reason string) {
	r.removeMember(target)
	r.Emit(event.MemberRemoved{Code: r.Code, Target: target, ActingUser: actingUser})
	r.Emit(event.RemovedFromRoom{Code: r.Code, Target: target, Reason: reason})
}

func (r *Room) appendAudit(target, moderator string, action ModerationAction, reason string, duration *time.Duration, at time.Time) AuditEntry {
	entry := AuditEntry{
		ID:        uuid.New(),
		Target:    target,
		Moderator: moderator,
		Action:    action,
		Reason:    reason,
		Duration:  duration,
		At:        at,
	}
	r.auditLog = append(r.auditLog, entry)
	return entry
}
