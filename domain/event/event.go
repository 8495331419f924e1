// Package event defines the closed vocabulary of state changes the room
// engine can broadcast. One variant per event, no open-ended payloads.
package event

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is emitted by a room after a successful state transition.
// Events for one room are always delivered in the order they were emitted.
type DomainEvent interface {
	RoomCode() string
	Name() string
}

// DirectEvent targets a single user instead of the whole room.
type DirectEvent interface {
	DomainEvent
	TargetUser() string
}

type AdmissionRequested struct {
	Code      string
	Username  string
	Policy    string
	At        time.Time
}

func (e AdmissionRequested) RoomCode() string { return e.Code }
func (e AdmissionRequested) Name() string     { return "admission_requested" }

// VoteUpdate is emitted after each vote that does not yet reach quorum.
type VoteUpdate struct {
	Code       string
	Target     string
	AdmitVotes int
	DenyVotes  int
	Required   int
}

func (e VoteUpdate) RoomCode() string { return e.Code }
func (e VoteUpdate) Name() string     { return "vote_update" }

// AdmissionDenied is delivered to the rejected requester only.
type AdmissionDenied struct {
	Code     string
	Username string
	Reason   string
}

func (e AdmissionDenied) RoomCode() string   { return e.Code }
func (e AdmissionDenied) Name() string       { return "admission_denied" }
func (e AdmissionDenied) TargetUser() string { return e.Username }

type MemberAdmitted struct {
	Code        string
	Username    string
	MemberCount int
	At          time.Time
}

func (e MemberAdmitted) RoomCode() string { return e.Code }
func (e MemberAdmitted) Name() string     { return "member_admitted" }

type MemberLeft struct {
	Code        string
	Username    string
	MemberCount int
}

func (e MemberLeft) RoomCode() string { return e.Code }
func (e MemberLeft) Name() string     { return "member_left" }

type MemberRemoved struct {
	Code       string
	Target     string
	ActingUser string
}

func (e MemberRemoved) RoomCode() string { return e.Code }
func (e MemberRemoved) Name() string     { return "member_removed" }

// RemovedFromRoom notifies the kicked user's own session.
type RemovedFromRoom struct {
	Code   string
	Target string
	Reason string
}

func (e RemovedFromRoom) RoomCode() string   { return e.Code }
func (e RemovedFromRoom) Name() string       { return "removed_from_room" }
func (e RemovedFromRoom) TargetUser() string { return e.Target }

type RoomDestroyed struct {
	Code   string
	Reason string
}

func (e RoomDestroyed) RoomCode() string { return e.Code }
func (e RoomDestroyed) Name() string     { return "room_destroyed" }

// RoomEmpty is emitted when the last member leaves a non-demo room.
// The room stays active and can be joined again.
type RoomEmpty struct {
	Code string
}

func (e RoomEmpty) RoomCode() string { return e.Code }
func (e RoomEmpty) Name() string     { return "room_empty" }

type OwnershipTransferred struct {
	Code     string
	OldOwner string
	NewOwner string
}

func (e OwnershipTransferred) RoomCode() string { return e.Code }
func (e OwnershipTransferred) Name() string     { return "ownership_transferred" }

// MessagePosted carries chat content that already went through censoring.
// CensoredWords lists the dictionary words that were masked, if any.
type MessagePosted struct {
	ID            uuid.UUID
	Code          string
	Author        string
	Content       string
	Media         bool
	CensoredWords []string
	At            time.Time
}

func (e MessagePosted) RoomCode() string { return e.Code }
func (e MessagePosted) Name() string     { return "message_posted" }
