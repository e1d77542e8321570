package signal

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/core"
)

type ConnState int

const (
	StateConnecting ConnState = iota
	StateAttached
	StateActive
	StateIdle
	StateDetached
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAttached:
		return "attached"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateDetached:
		return "detached"
	}
	return "unknown"
}

var transitions = map[ConnState][]ConnState{
	StateConnecting: {StateAttached, StateDetached},
	StateAttached:   {StateActive, StateIdle, StateDetached},
	StateActive:     {StateIdle, StateDetached},
	StateIdle:       {StateActive, StateDetached},
}

// connState tracks the lifecycle of one connection. Detached is terminal.
type connState struct {
	mu     sync.Mutex
	cur    ConnState
	sid    string
	device string
}

func newConnState() *connState { return &connState{cur: StateConnecting} }

func (s *connState) bind(ds core.DeviceSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sid = string(ds.SessionID())
	s.device = string(ds.Meta().ID)
}

// set moves to next if the transition is allowed and reports whether it did.
func (s *connState) set(next ConnState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == next {
		return false
	}
	allowed := false
	for _, to := range transitions[s.cur] {
		if to == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	log.Debug().Str("module", "signal").Str("sid", s.sid).Str("device", s.device).
		Str("from", s.cur.String()).Str("to", next.String()).Msg("connection state")
	s.cur = next
	return true
}

func (s *connState) get() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}
