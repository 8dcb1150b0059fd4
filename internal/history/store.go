// Package history implements the process-wide, per-session rolling state
// (C10): the last-10 regime tags used for persistence/whipsaw checks, the
// last-20 trade outcomes used for the Kelly sizer and circuit breaker, and
// the peak-value/drawdown tracker. None of this is part of the persisted
// Session State record — it is ephemeral process state released when a
// session stops, per §5 and the design notes' "single SessionStore actor"
// guidance.
//
// Grounded on internal/workers/pool.go's mutex-guarded shared-state idiom
// in the teacher repository (no direct per-session-history analog exists
// there).
package history

import (
	"sync"

	"github.com/atlas-desktop/paper-engine/pkg/types"
)

const (
	regimeRollingCap = 10
	regimePersistWindow = 5
	outcomesCap = 20
)

type sessionEntry struct {
	mu sync.Mutex

	regimeRolling []types.RegimeKind // oldest-first, capped at 10
	outcomes      []bool   // oldest-first, capped at 20

	peak float64
}

// Store owns every session's rolling history, keyed by session id. The
// zero value is ready to use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*sessionEntry)}
}

func (s *Store) entry(sessionID string) *sessionEntry {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		return e
	}
	if s.sessions == nil {
		s.sessions = make(map[string]*sessionEntry)
	}
	e = &sessionEntry{}
	s.sessions[sessionID] = e
	return e
}

// Reset seeds the peak tracker at session start (or on manual reset) and
// clears rolling history. initialValue is the session's initial capital.
func (s *Store) Reset(sessionID string, initialValue float64) {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peak = initialValue
	e.regimeRolling = nil
	e.outcomes = nil
}

// Release drops a session's process-wide state entirely; called by
// stop_session.
func (s *Store) Release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// AppendRegime appends the tick's classified regime to the rolling-10
// buffer and returns the buffer (oldest first) after the append.
func (s *Store) AppendRegime(sessionID string, regime types.RegimeKind) []types.RegimeKind {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.regimeRolling = append(e.regimeRolling, regime)
	if len(e.regimeRolling) > regimeRollingCap {
		e.regimeRolling = e.regimeRolling[len(e.regimeRolling)-regimeRollingCap:]
	}
	out := make([]types.RegimeKind, len(e.regimeRolling))
	copy(out, e.regimeRolling)
	return out
}

// Last5Regimes returns the persistence-relevant window: the most recent up
// to 5 entries of the rolling-10 buffer.
func (s *Store) Last5Regimes(sessionID string) []types.RegimeKind {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.regimeRolling)
	start := n - regimePersistWindow
	if start < 0 {
		start = 0
	}
	out := make([]types.RegimeKind, n-start)
	copy(out, e.regimeRolling[start:])
	return out
}

// AppendOutcome records a completed sell's win/loss outcome into the
// recent-outcomes ring (cap 20).
func (s *Store) AppendOutcome(sessionID string, win bool) []bool {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outcomes = append(e.outcomes, win)
	if len(e.outcomes) > outcomesCap {
		e.outcomes = e.outcomes[len(e.outcomes)-outcomesCap:]
	}
	out := make([]bool, len(e.outcomes))
	copy(out, e.outcomes)
	return out
}

// Outcomes returns the current recent-outcomes ring.
func (s *Store) Outcomes(sessionID string) []bool {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]bool, len(e.outcomes))
	copy(out, e.outcomes)
	return out
}

// UpdatePeakDrawdown advances the peak to max(peak, totalValue) and returns
// the resulting (peak, drawdown) pair, drawdown = max(0, (peak-total)/peak).
func (s *Store) UpdatePeakDrawdown(sessionID string, totalValue float64) (peak, drawdown float64) {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if totalValue > e.peak {
		e.peak = totalValue
	}
	peak = e.peak
	if peak > 0 {
		drawdown = (peak - totalValue) / peak
		if drawdown < 0 {
			drawdown = 0
		}
	}
	return peak, drawdown
}

// Peak returns the current peak value without mutating it.
func (s *Store) Peak(sessionID string) float64 {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peak
}
