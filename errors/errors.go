// Package errors holds the sentinel errors shared by the room engine.
// Every failure returned to a caller maps to exactly one of these values,
// wrapped with %w where context is useful.
package errors

import "fmt"

var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrUnauthorized      = fmt.Errorf("caller lacks the required role")
	ErrAlreadyMember     = fmt.Errorf("user is already a member")
	ErrAlreadyPending    = fmt.Errorf("admission request already pending")
	ErrNoPendingRequest  = fmt.Errorf("no pending admission request")
	ErrInvalidTarget     = fmt.Errorf("invalid moderation target")
	ErrCannotRemoveOwner = fmt.Errorf("the owner cannot be removed")
	ErrPersistenceFailed = fmt.Errorf("persistence write failed")
	ErrRoomTerminal      = fmt.Errorf("room has been destroyed")
	ErrRoomExists        = fmt.Errorf("room code already in use")
	ErrRoomFull          = fmt.Errorf("room is full")
	ErrBanned            = fmt.Errorf("user is banned from the room")
	ErrMuted             = fmt.Errorf("user is muted")
	ErrMediaRestricted   = fmt.Errorf("user cannot post media")
	ErrInternal          = fmt.Errorf("internal error")

	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)
