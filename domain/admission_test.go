package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aethermeet/domain/event"
	"aethermeet/errors"
)

var testTime = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testTime }

func newTestLifecycle(capacity int) (*MembershipLifecycle, *AdmissionController, *ModerationEnforcer) {
	admission := NewAdmissionController(capacity, fixedClock)
	enforcer := NewModerationEnforcer(fixedClock)
	lifecycle := NewMembershipLifecycle(admission, enforcer, fixedClock)
	return lifecycle, admission, enforcer
}

func Test_Instant_Policy_Admits_Immediately(t *testing.T) {
	req := require.New(t)
	lifecycle, _, _ := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyInstant, false, testTime)

	// When bob joins an instant room
	decision, err := lifecycle.Join(room, "bob")

	// Then he is a member right away
	req.NoError(err)
	req.Equal(DecisionAdmit, decision)
	req.True(room.HasMember("bob"))

	events := room.FlushEvents()
	req.Len(events, 1)
	admitted, ok := events[0].(event.MemberAdmitted)
	req.True(ok)
	req.Equal("bob", admitted.Username)
	req.Equal(2, admitted.MemberCount)
}

func Test_Owner_Approval_Policy_Queues_The_Request(t *testing.T) {
	req := require.New(t)
	lifecycle, _, _ := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyOwnerApproval, false, testTime)

	decision, err := lifecycle.Join(room, "bob")

	req.NoError(err)
	req.Equal(DecisionPending, decision)
	req.False(room.HasMember("bob"))
	_, pending := room.Pending("bob")
	req.True(pending)

	events := room.FlushEvents()
	req.Len(events, 1)
	req.IsType(event.AdmissionRequested{}, events[0])
}

func Test_Owner_Resolves_Pending_Request(t *testing.T) {
	req := require.New(t)
	lifecycle, admission, _ := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyOwnerApproval, false, testTime)
	_, err := lifecycle.Join(room, "bob")
	req.NoError(err)
	room.FlushEvents()

	// Only the owner may resolve
	req.ErrorIs(admission.Resolve(room, "bob", true, "mallory"), errors.ErrUnauthorized)

	// When the owner admits
	req.NoError(admission.Resolve(room, "bob", true, "alice"))
	req.True(room.HasMember("bob"))

	// Then resolving again fails: the request is gone
	req.ErrorIs(admission.Resolve(room, "bob", true, "alice"), errors.ErrNoPendingRequest)
}

func Test_Owner_Denies_Pending_Request(t *testing.T) {
	req := require.New(t)
	lifecycle, admission, _ := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyOwnerApproval, false, testTime)
	_, err := lifecycle.Join(room, "bob")
	req.NoError(err)
	room.FlushEvents()

	req.NoError(admission.Resolve(room, "bob", false, "alice"))

	req.False(room.HasMember("bob"))
	_, pending := room.Pending("bob")
	req.False(pending)

	events := room.FlushEvents()
	req.Len(events, 1)
	denied, ok := events[0].(event.AdmissionDenied)
	req.True(ok)
	req.Equal("bob", denied.Username)
}

func Test_Duplicate_Join_Requests_Are_Rejected(t *testing.T) {
	req := require.New(t)
	lifecycle, _, _ := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyOwnerApproval, false, testTime)

	_, err := lifecycle.Join(room, "alice")
	req.ErrorIs(err, errors.ErrAlreadyMember)

	_, err = lifecycle.Join(room, "bob")
	req.NoError(err)
	_, err = lifecycle.Join(room, "bob")
	req.ErrorIs(err, errors.ErrAlreadyPending)
}

func Test_Full_Room_Denies_Without_Error(t *testing.T) {
	req := require.New(t)
	lifecycle, _, _ := newTestLifecycle(2)
	room := NewRoom("ABC123", "alice", PolicyInstant, false, testTime)
	_, err := lifecycle.Join(room, "bob")
	req.NoError(err)
	room.FlushEvents()

	decision, err := lifecycle.Join(room, "clara")

	// Deny is an outcome, not an error
	req.NoError(err)
	req.Equal(DecisionDeny, decision)
	req.False(room.HasMember("clara"))

	events := room.FlushEvents()
	req.Len(events, 1)
	denied, ok := events[0].(event.AdmissionDenied)
	req.True(ok)
	req.Equal("room full", denied.Reason)
}

func Test_Banned_User_Is_Denied_On_Join(t *testing.T) {
	req := require.New(t)
	lifecycle, _, enforcer := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyInstant, false, testTime)
	_, err := enforcer.Apply(room, "bob", "alice", ActionBan, "spam", nil)
	req.NoError(err)
	room.FlushEvents()

	decision, err := lifecycle.Join(room, "bob")

	req.NoError(err)
	req.Equal(DecisionDeny, decision)
	events := room.FlushEvents()
	req.Len(events, 1)
	denied, ok := events[0].(event.AdmissionDenied)
	req.True(ok)
	req.Equal("banned", denied.Reason)
}

func Test_Quorum_Is_Ceiling_Of_Half_The_Members(t *testing.T) {
	req := require.New(t)
	_, admission, _ := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyDemocratic, false, testTime)
	req.Equal(1, admission.Quorum(room))

	room.addMember("bob", testTime)
	req.Equal(1, admission.Quorum(room))

	room.addMember("clara", testTime)
	req.Equal(2, admission.Quorum(room))

	room.addMember("dave", testTime)
	req.Equal(2, admission.Quorum(room))

	room.addMember("erin", testTime)
	req.Equal(3, admission.Quorum(room))
}

func Test_Democratic_Vote_Admits_At_Quorum(t *testing.T) {
	req := require.New(t)
	lifecycle, admission, _ := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyDemocratic, false, testTime)
	room.addMember("bob", testTime)
	room.addMember("clara", testTime)
	_, err := lifecycle.Join(room, "dave")
	req.NoError(err)
	room.FlushEvents()

	// First vote: below quorum, a tally update goes out
	req.NoError(admission.CastVote(room, "dave", "alice", VoteAdmit))
	events := room.FlushEvents()
	req.Len(events, 1)
	update, ok := events[0].(event.VoteUpdate)
	req.True(ok)
	req.Equal(1, update.AdmitVotes)
	req.Equal(2, update.Required)

	// Second vote reaches quorum with a majority: admitted
	req.NoError(admission.CastVote(room, "dave", "bob", VoteAdmit))
	req.True(room.HasMember("dave"))
	events = room.FlushEvents()
	req.Len(events, 1)
	req.IsType(event.MemberAdmitted{}, events[0])
}

func Test_Democratic_Vote_Tie_Denies(t *testing.T) {
	req := require.New(t)
	lifecycle, admission, _ := newTestLifecycle(0)
	// Three members: quorum is 2
	room := NewRoom("ABC123", "alice", PolicyDemocratic, false, testTime)
	room.addMember("bob", testTime)
	room.addMember("clara", testTime)
	_, err := lifecycle.Join(room, "dave")
	req.NoError(err)
	room.FlushEvents()

	req.NoError(admission.CastVote(room, "dave", "alice", VoteAdmit))
	room.FlushEvents()
	req.NoError(admission.CastVote(room, "dave", "bob", VoteDeny))

	// One admit, one deny at quorum: the tie resolves to deny
	req.False(room.HasMember("dave"))
	_, pending := room.Pending("dave")
	req.False(pending)

	events := room.FlushEvents()
	req.Len(events, 1)
	denied, ok := events[0].(event.AdmissionDenied)
	req.True(ok)
	req.Equal("denied by vote", denied.Reason)
}

func Test_Revote_Overwrites_Previous_Vote(t *testing.T) {
	req := require.New(t)
	lifecycle, admission, _ := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyDemocratic, false, testTime)
	room.addMember("bob", testTime)
	room.addMember("clara", testTime)
	_, err := lifecycle.Join(room, "dave")
	req.NoError(err)
	room.FlushEvents()

	req.NoError(admission.CastVote(room, "dave", "alice", VoteDeny))
	room.FlushEvents()

	// Alice changes her mind: still one single vote
	req.NoError(admission.CastVote(room, "dave", "alice", VoteAdmit))
	p, ok := room.Pending("dave")
	req.True(ok)
	admit, deny := p.Tally()
	req.Equal(1, admit)
	req.Equal(0, deny)
}

func Test_Only_Members_Vote_And_Never_On_Themselves(t *testing.T) {
	req := require.New(t)
	lifecycle, admission, _ := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyDemocratic, false, testTime)
	_, err := lifecycle.Join(room, "dave")
	req.NoError(err)
	room.FlushEvents()

	req.ErrorIs(admission.CastVote(room, "dave", "stranger", VoteAdmit), errors.ErrUnauthorized)
	req.ErrorIs(admission.CastVote(room, "dave", "dave", VoteAdmit), errors.ErrUnauthorized)
	req.ErrorIs(admission.CastVote(room, "nobody", "alice", VoteAdmit), errors.ErrNoPendingRequest)
}

func Test_Vote_Admission_Rechecks_Capacity(t *testing.T) {
	req := require.New(t)
	lifecycle, admission, _ := newTestLifecycle(2)
	room := NewRoom("ABC123", "alice", PolicyDemocratic, false, testTime)
	_, err := lifecycle.Join(room, "dave")
	req.NoError(err)
	room.FlushEvents()

	// The room fills up while dave's request is pending
	room.addMember("bob", testTime)

	// Quorum is now 1; the admit vote arrives but the room is full
	req.NoError(admission.CastVote(room, "dave", "bob", VoteAdmit))
	req.False(room.HasMember("dave"))

	events := room.FlushEvents()
	req.Len(events, 1)
	denied, ok := events[0].(event.AdmissionDenied)
	req.True(ok)
	req.Equal("room full", denied.Reason)
}

func Test_Owner_Admit_Of_A_Full_Room_Reports_Room_Full(t *testing.T) {
	req := require.New(t)
	lifecycle, admission, _ := newTestLifecycle(2)
	room := NewRoom("ABC123", "alice", PolicyOwnerApproval, false, testTime)
	_, err := lifecycle.Join(room, "dave")
	req.NoError(err)
	room.FlushEvents()

	// The room fills up while dave's request awaits the owner
	room.addMember("bob", testTime)

	req.NoError(admission.Resolve(room, "dave", true, "alice"))
	req.False(room.HasMember("dave"))
	_, pending := room.Pending("dave")
	req.False(pending)

	events := room.FlushEvents()
	req.Len(events, 1)
	denied, ok := events[0].(event.AdmissionDenied)
	req.True(ok)
	req.Equal("room full", denied.Reason)
}

func Test_Votes_Survive_A_Voter_Leaving(t *testing.T) {
	req := require.New(t)
	lifecycle, admission, _ := newTestLifecycle(0)
	room := NewRoom("ABC123", "alice", PolicyDemocratic, false, testTime)
	room.addMember("bob", testTime)
	room.addMember("clara", testTime)
	room.addMember("erin", testTime)
	_, err := lifecycle.Join(room, "dave")
	req.NoError(err)
	room.FlushEvents()

	req.NoError(admission.CastVote(room, "dave", "bob", VoteAdmit))
	room.FlushEvents()
	req.NoError(lifecycle.Leave(room, "bob", LeaveDefault))
	room.FlushEvents()

	// Bob's vote still counts; quorum dropped to 2 with three members left
	req.NoError(admission.CastVote(room, "dave", "clara", VoteAdmit))
	req.True(room.HasMember("dave"))
}
