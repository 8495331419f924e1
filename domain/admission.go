package domain

import (
	"time"

	"aethermeet/domain/event"
	"aethermeet/errors"
)

type Decision string

const (
	DecisionAdmit   Decision = "admit"
	DecisionDeny    Decision = "deny"
	DecisionPending Decision = "pending"
)

// AdmissionController resolves join requests against a room's admission
// policy and runs the democratic voting algorithm.
//
// Capacity is external configuration; zero means unlimited.
type AdmissionController struct {
	capacity int
	now      func() time.Time
}

func NewAdmissionController(capacity int, now func() time.Time) *AdmissionController {
	if now == nil {
		now = time.Now
	}
	return &AdmissionController{capacity: capacity, now: now}
}

// Quorum returns the number of votes needed to resolve a pending admission:
// ceil(members/2).
func (c *AdmissionController) Quorum(r *Room) int {
	return (r.MemberCount() + 1) / 2
}

func (c *AdmissionController) full(r *Room) bool {
	return c.capacity > 0 && r.MemberCount() >= c.capacity
}

// Decide evaluates a join request. It never adds members: the lifecycle
// commits an Admit outcome. A Pending outcome registers the request in the
// room's pending set.
func (c *AdmissionController) Decide(r *Room, requester string) (Decision, error) {
	if r.HasMember(requester) {
		return "", errors.ErrAlreadyMember
	}
	if _, ok := r.Pending(requester); ok {
		return "", errors.ErrAlreadyPending
	}
	if entry, ok := r.restrictions[RestrictionBanned][requester]; ok && entry.ActiveAt(c.now()) {
		r.Emit(event.AdmissionDenied{Code: r.Code, Username: requester, Reason: "banned"})
		return DecisionDeny, nil
	}
	if c.full(r) {
		r.Emit(event.AdmissionDenied{Code: r.Code, Username: requester, Reason: "room full"})
		return DecisionDeny, nil
	}

	if r.Policy == PolicyInstant {
		return DecisionAdmit, nil
	}

	r.pending[requester] = newPendingAdmission(requester, c.now())
	return DecisionPending, nil
}

// Resolve applies the owner's explicit admit/deny decision on a pending
// request. Only the owner may resolve under the owner_approval policy.
func (c *AdmissionController) Resolve(r *Room, target string, admit bool, actingUser string) error {
	if actingUser != r.Owner {
		return errors.ErrUnauthorized
	}
	if _, ok := r.Pending(target); !ok {
		return errors.ErrNoPendingRequest
	}

	if admit {
		// The room may have filled since the request was made. The requester
		// is told the true reason, not that the owner rejected them.
		if c.full(r) {
			c.deny(r, target, "room full")
			return nil
		}
		c.admit(r, target)
		return nil
	}
	c.deny(r, target, "denied by owner")
	return nil
}

// CastVote upserts one member's vote on a pending admission and resolves the
// request once quorum is reached. Ties always resolve to deny.
func (c *AdmissionController) CastVote(r *Room, target, voter string, vote Vote) error {
	if !r.HasMember(voter) || voter == target {
		return errors.ErrUnauthorized
	}
	p, ok := r.Pending(target)
	if !ok {
		return errors.ErrNoPendingRequest
	}

	p.Votes[voter] = vote
	admitVotes, denyVotes := p.Tally()
	required := c.Quorum(r)

	if admitVotes+denyVotes < required {
		r.Emit(event.VoteUpdate{
			Code:       r.Code,
			Target:     target,
			AdmitVotes: admitVotes,
			DenyVotes:  denyVotes,
			Required:   required,
		})
		return nil
	}

	if admitVotes > denyVotes {
		if c.full(r) {
			c.deny(r, target, "room full")
			return nil
		}
		c.admit(r, target)
		return nil
	}
	c.deny(r, target, "denied by vote")
	return nil
}

func (c *AdmissionController) admit(r *Room, username string) {
	now := c.now()
	r.addMember(username, now)
	r.Emit(event.MemberAdmitted{
		Code:        r.Code,
		Username:    username,
		MemberCount: r.MemberCount(),
		At:          now,
	})
}

func (c *AdmissionController) deny(r *Room, username, reason string) {
	delete(r.pending, username)
	r.Emit(event.AdmissionDenied{Code: r.Code, Username: username, Reason: reason})
}
