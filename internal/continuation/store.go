package continuation

import (
	"sort"
	"time"
)

// sessionState is the per-session bookkeeping. Guarded by Dispatcher.mu.
type sessionState struct {
	lastErrorAt time.Time
	// isRecovering suppresses continuation while set. Nothing sets it yet.
	isRecovering bool
	countdown    *countdown
	// epoch advances on every cancellation so in-flight checks can tell the
	// session moved on while they waited on bd or the host.
	epoch uint64
}

type countdown struct {
	remaining  int
	incomplete int
	tick       Timer
	expiry     Timer
}

func (c *countdown) stop() {
	if c == nil {
		return
	}
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
}

// Store maps session IDs to their state. It is not safe for concurrent use on
// its own; the Dispatcher serializes access.
type Store struct {
	sessions map[string]*sessionState
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{sessions: map[string]*sessionState{}}
}

// GetOrCreate returns the state for id, inserting a fresh entry when absent.
func (s *Store) GetOrCreate(id string) *sessionState {
	if state, ok := s.sessions[id]; ok {
		return state
	}
	state := &sessionState{}
	s.sessions[id] = state
	return state
}

// Lookup returns the state for id without inserting.
func (s *Store) Lookup(id string) (*sessionState, bool) {
	state, ok := s.sessions[id]
	return state, ok
}

// Remove deletes id. Missing entries are ignored.
func (s *Store) Remove(id string) {
	delete(s.sessions, id)
}

// SessionStatus is a read-only view of one session for monitoring.
type SessionStatus struct {
	ID           string     `json:"id"`
	CountingDown bool       `json:"counting_down"`
	Remaining    int        `json:"remaining,omitempty"`
	Incomplete   int        `json:"incomplete,omitempty"`
	LastErrorAt  *time.Time `json:"last_error_at,omitempty"`
	Recovering   bool       `json:"recovering,omitempty"`
}

// Snapshot copies every session's state, sorted by ID.
func (s *Store) Snapshot() []SessionStatus {
	out := make([]SessionStatus, 0, len(s.sessions))
	for id, state := range s.sessions {
		status := SessionStatus{ID: id, Recovering: state.isRecovering}
		if !state.lastErrorAt.IsZero() {
			at := state.lastErrorAt
			status.LastErrorAt = &at
		}
		if cd := state.countdown; cd != nil {
			status.CountingDown = true
			status.Remaining = cd.remaining
			status.Incomplete = cd.incomplete
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
