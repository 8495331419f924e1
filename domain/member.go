package domain

import "time"

// Member is a user currently admitted to a room.
type Member struct {
	Username string
	JoinedAt time.Time
}

type Vote string

const (
	VoteAdmit Vote = "admit"
	VoteDeny  Vote = "deny"
)

// PendingAdmission tracks a join request awaiting resolution.
// Votes is keyed by voter username; a re-vote overwrites the previous one.
type PendingAdmission struct {
	Username    string
	RequestedAt time.Time
	Votes       map[string]Vote
}

func newPendingAdmission(username string, now time.Time) *PendingAdmission {
	return &PendingAdmission{
		Username:    username,
		RequestedAt: now,
		Votes:       make(map[string]Vote),
	}
}

// Tally returns the current admit and deny counts.
func (p *PendingAdmission) Tally() (admit, deny int) {
	for _, v := range p.Votes {
		if v == VoteAdmit {
			admit++
		} else {
			deny++
		}
	}
	return admit, deny
}

func (p *PendingAdmission) clone() *PendingAdmission {
	c := &PendingAdmission{
		Username:    p.Username,
		RequestedAt: p.RequestedAt,
		Votes:       make(map[string]Vote, len(p.Votes)),
	}
	for k, v := range p.Votes {
		c.Votes[k] = v
	}
	return c
}
