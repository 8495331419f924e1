package services

import (
	"context"
	goerrors "errors"
	"time"

	"aethermeet/auth"
	"aethermeet/contract"
	"aethermeet/domain"
	"aethermeet/errors"
	"aethermeet/runtime"
)

// codeRetries bounds the collision retry loop on room creation. With a
// 36^6 code space, collisions are vanishingly rare.
const codeRetries = 5

type CreatedRoom struct {
	Code  string
	Token string
}

type IRoomService interface {
	CreateRoom(ctx context.Context, req auth.CreateRoomRequest) (CreatedRoom, error)
	Join(ctx context.Context, req auth.JoinRoomRequest) (domain.Decision, string, error)
	Authorize(code, username string) error
	Resolve(ctx context.Context, code, target, actingUser string, admit bool) error
	CastVote(ctx context.Context, code, target, voter string, vote domain.Vote) error
	Leave(ctx context.Context, code, username string, mode domain.LeaveMode) error
	Kick(ctx context.Context, code, target, actingUser string) error
	Moderate(ctx context.Context, code, target, actingUser string, action domain.ModerationAction, reason string, durationMinutes *int) error
	PostMessage(ctx context.Context, code, author, content string, media bool) error
	Messages(code string, cursor *string) ([]domain.Message, *string, error)
	Roster(code string) []string
	Subscribe(username, code string, sink contract.EventSink)
	Unsubscribe(username, code string)
}

// RoomService is the facade the transports call. It validates input, checks
// credentials, and forwards operations to the orchestrator; all room rules
// live behind the actors.
type RoomService struct {
	orchestrator *runtime.Orchestrator
	credentials  ICredentialService
	now          func() time.Time
}

func NewRoomService(orchestrator *runtime.Orchestrator, credentials ICredentialService) *RoomService {
	return &RoomService{orchestrator: orchestrator, credentials: credentials, now: time.Now}
}

// CreateRoom opens a new room with the caller as owner and returns its code
// plus a session token. Code collisions are retried with fresh codes.
func (s *RoomService) CreateRoom(_ context.Context, req auth.CreateRoomRequest) (CreatedRoom, error) {
	if err := auth.ValidateCreateRoom(req); err != nil {
		return CreatedRoom{}, err
	}

	var code string
	for attempt := 0; ; attempt++ {
		code = domain.NewRoomCode()
		room := domain.NewRoom(code, req.Username, domain.AdmissionPolicy(req.Policy), req.IsDemo, s.now())
		err := s.orchestrator.CreateRoom(room)
		if err == nil {
			break
		}
		if !goerrors.Is(err, errors.ErrRoomExists) || attempt == codeRetries {
			return CreatedRoom{}, err
		}
	}

	if err := s.credentials.Protect(code, req.Passphrase); err != nil {
		return CreatedRoom{}, err
	}

	token, err := s.credentials.IssueToken(req.Username)
	if err != nil {
		return CreatedRoom{}, err
	}
	return CreatedRoom{Code: code, Token: token}, nil
}

// Join submits an admission request. The passphrase is checked before the
// room actor is involved; the decision comes back through the actor's own
// reply, so a racing kick or join can never make it misreport.
//
// A denied requester gets no session token: a token opens the event stream,
// and a deny grants nothing.
func (s *RoomService) Join(ctx context.Context, req auth.JoinRoomRequest) (domain.Decision, string, error) {
	if err := auth.ValidateJoinRoom(req); err != nil {
		return "", "", err
	}
	if err := s.credentials.Verify(req.Code, req.Passphrase); err != nil {
		return "", "", err
	}

	var decision domain.Decision
	err := s.orchestrator.Dispatch(ctx, domain.JoinOperation{
		Code:     req.Code,
		Username: req.Username,
		Result:   &decision,
	})
	if err != nil {
		return "", "", err
	}
	if decision == domain.DecisionDeny {
		return decision, "", nil
	}

	token, err := s.credentials.IssueToken(req.Username)
	if err != nil {
		return "", "", err
	}
	return decision, token, nil
}

// Authorize checks that a user may attach to a room's event stream: members
// always, pending requesters too, so they can follow their own admission.
func (s *RoomService) Authorize(code, username string) error {
	room, err := s.orchestrator.GetRoom(code)
	if err != nil {
		return err
	}
	if room.HasMember(username) {
		return nil
	}
	if _, pending := room.Pending(username); pending {
		return nil
	}
	return errors.ErrUnauthorized
}

// Resolve applies the owner's admit or deny on a pending request.
func (s *RoomService) Resolve(ctx context.Context, code, target, actingUser string, admit bool) error {
	return s.orchestrator.Dispatch(ctx, domain.ResolveOperation{
		Code:       code,
		Target:     target,
		Admit:      admit,
		ActingUser: actingUser,
	})
}

// CastVote records one member's vote on a pending admission.
func (s *RoomService) CastVote(ctx context.Context, code, target, voter string, vote domain.Vote) error {
	return s.orchestrator.Dispatch(ctx, domain.CastVoteOperation{
		Code:   code,
		Target: target,
		Voter:  voter,
		Vote:   vote,
	})
}

// Leave processes a departure in one of the three modes.
func (s *RoomService) Leave(ctx context.Context, code, username string, mode domain.LeaveMode) error {
	return s.orchestrator.Dispatch(ctx, domain.LeaveOperation{Code: code, Username: username, Mode: mode})
}

func (s *RoomService) Kick(ctx context.Context, code, target, actingUser string) error {
	return s.orchestrator.Dispatch(ctx, domain.KickOperation{Code: code, Target: target, ActingUser: actingUser})
}

// Moderate applies a moderation action, optionally bounded by a TTL in
// minutes. A nil duration means permanent.
func (s *RoomService) Moderate(ctx context.Context, code, target, actingUser string, action domain.ModerationAction, reason string, durationMinutes *int) error {
	return s.orchestrator.Dispatch(ctx, domain.ModerateOperation{
		Code:            code,
		Target:          target,
		ActingUser:      actingUser,
		Action:          action,
		Reason:          reason,
		DurationMinutes: durationMinutes,
	})
}

// PostMessage relays chat content through the room's actor, which censors
// and enforces mutes before broadcasting.
func (s *RoomService) PostMessage(ctx context.Context, code, author, content string, media bool) error {
	return s.orchestrator.Dispatch(ctx, domain.PostMessageOperation{
		Code:      code,
		Author:    author,
		Content:   content,
		Media:     media,
		CreatedAt: s.now(),
	})
}

// Messages pages through the room's archive, newest first.
func (s *RoomService) Messages(code string, cursor *string) ([]domain.Message, *string, error) {
	return s.orchestrator.GetMessages(code, cursor)
}

// Roster returns the projected member list.
func (s *RoomService) Roster(code string) []string {
	return s.orchestrator.Roster(code)
}

// Subscribe attaches a connected session to a room's broadcast audience.
func (s *RoomService) Subscribe(username, code string, sink contract.EventSink) {
	s.orchestrator.RegisterParticipant(username, code, sink)
}

// Unsubscribe detaches a session without touching room membership.
func (s *RoomService) Unsubscribe(username, code string) {
	s.orchestrator.UnregisterParticipant(username, code)
}
