package domain

import "time"

type LeaveMode string

const (
	LeaveDefault  LeaveMode = "leave"
	LeaveDestroy  LeaveMode = "destroy"
	LeaveTransfer LeaveMode = "transfer"
)

// Operation is one unit of work serialized through a room's actor.
type Operation interface {
	RoomCode() string
}

// JoinOperation carries an optional Result pointer the actor fills with the
// admission outcome while the operation is applied, so callers read the
// decision from the serialized execution itself rather than reconstructing
// it from storage after the fact.
type JoinOperation struct {
	Code     string
	Username string
	Result   *Decision
}

func (o JoinOperation) RoomCode() string { return o.Code }

// ResolveOperation is the owner's explicit decision on a pending admission.
type ResolveOperation struct {
	Code       string
	Target     string
	Admit      bool
	ActingUser string
}

func (o ResolveOperation) RoomCode() string { return o.Code }

type CastVoteOperation struct {
	Code   string
	Target string
	Voter  string
	Vote   Vote
}

func (o CastVoteOperation) RoomCode() string { return o.Code }

type LeaveOperation struct {
	Code     string
	Username string
	Mode     LeaveMode
}

func (o LeaveOperation) RoomCode() string { return o.Code }

type KickOperation struct {
	Code       string
	Target     string
	ActingUser string
}

func (o KickOperation) RoomCode() string { return o.Code }

type ModerateOperation struct {
	Code            string
	Target          string
	ActingUser      string
	Action          ModerationAction
	Reason          string
	DurationMinutes *int
}

func (o ModerateOperation) RoomCode() string { return o.Code }

type PostMessageOperation struct {
	Code      string
	Author    string
	Content   string
	Media     bool
	CreatedAt time.Time
}

func (o PostMessageOperation) RoomCode() string { return o.Code }

// SweepOperation removes expired moderation entries. Dispatched periodically
// for memory hygiene; correctness never depends on it.
type SweepOperation struct {
	Code string
}

func (o SweepOperation) RoomCode() string { return o.Code }
