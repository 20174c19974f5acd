package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// Agent is reference data for a cash-pickup location. It takes no part in the
// settlement invariants; payout listings filter on it.
type Agent struct {
	ID       int64
	PublicID uuid.UUID
	Name     string
	Location string
	Hours    string
	Active   bool
}

// AgentFilter carries exactly one of the two agent identifier forms.
type AgentFilter struct {
	ID       *int64
	PublicID *uuid.UUID
}

func (f AgentFilter) Empty() bool {
	return f.ID == nil && f.PublicID == nil
}

// ParseAgentFilter resolves a raw identifier into exactly one form. A value
// parseable as a base-10 integer is an internal id; otherwise it must be a
// UUID public id. The two spaces cannot collide: a canonical UUID string is
// never a valid integer. Anything else is a client error, never a silent
// zero-row match.
func ParseAgentFilter(raw string) (AgentFilter, error) {
	if raw == "" {
		return AgentFilter{}, nil
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return AgentFilter{ID: &id}, nil
	}
	if pub, err := uuid.Parse(raw); err == nil {
		return AgentFilter{PublicID: &pub}, nil
	}
	return AgentFilter{}, ErrAmbiguousAgentID
}
