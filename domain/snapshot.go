package domain

import "time"

// RoomSnapshot is the persistence form of a Room: plain exported data with
// no behavior, suitable for encoding. The repository layer owns the actual
// storage format.
type RoomSnapshot struct {
	Code      string
	Owner     string
	Policy    AdmissionPolicy
	IsDemo    bool
	Active    bool
	CreatedAt time.Time

	Members      []Member
	Pending      []PendingAdmission
	Moderators   []string
	Restrictions map[RestrictionKind][]RestrictionEntry
	AuditLog     []AuditEntry
}

// Snapshot exports the full room state. The outbox is transient and never
// part of a snapshot.
func (r *Room) Snapshot() RoomSnapshot {
	s := RoomSnapshot{
		Code:      r.Code,
		Owner:     r.Owner,
		Policy:    r.Policy,
		IsDemo:    r.IsDemo,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,

		Members:      r.Members(),
		Restrictions: make(map[RestrictionKind][]RestrictionEntry, len(r.restrictions)),
		AuditLog:     r.AuditLog(),
	}
	for _, p := range r.pending {
		s.Pending = append(s.Pending, *p.clone())
	}
	for mod := range r.moderators {
		s.Moderators = append(s.Moderators, mod)
	}
	for kind, entries := range r.restrictions {
		for _, e := range entries {
			s.Restrictions[kind] = append(s.Restrictions[kind], e)
		}
	}
	return s
}

// FromSnapshot rebuilds an in-memory room from its persistence form.
func FromSnapshot(s RoomSnapshot) *Room {
	r := &Room{
		Code:      s.Code,
		Owner:     s.Owner,
		Policy:    s.Policy,
		IsDemo:    s.IsDemo,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,

		members:      make(map[string]Member, len(s.Members)),
		pending:      make(map[string]*PendingAdmission, len(s.Pending)),
		moderators:   make(map[string]struct{}, len(s.Moderators)),
		restrictions: emptyRestrictions(),
		auditLog:     append([]AuditEntry(nil), s.AuditLog...),
	}
	for _, m := range s.Members {
		r.members[m.Username] = m
	}
	for _, p := range s.Pending {
		r.pending[p.Username] = p.clone()
	}
	for _, mod := range s.Moderators {
		r.moderators[mod] = struct{}{}
	}
	for kind, entries := range s.Restrictions {
		if _, known := r.restrictions[kind]; !known {
			continue
		}
		for _, e := range entries {
			r.restrictions[kind][e.Username] = e
		}
	}
	return r
}
