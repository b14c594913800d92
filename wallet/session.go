// Package wallet holds the process-wide wallet session: whether a wallet is
// connected, which address, and under what display name. The session is
// created empty at process start, populated by a successful sign-in, cleared
// by disconnect, and never persisted across restarts.
package wallet

import (
	"sync"

	"github.com/pkg/errors"
)

// Phase is the connect-attempt position. A single enum replaces the pair of
// booleans (connecting / creating user) the mini-app kept in sync by
// convention.
type Phase int

const (
	// PhaseIdle means no sign-in is in flight.
	PhaseIdle Phase = iota
	// PhaseInFlight means a sign-in sequence is running; duplicates must
	// no-op.
	PhaseInFlight
)

// Session is a read-only snapshot of the wallet state.
type Session struct {
	Connected   bool
	Address     string
	DisplayName string
}

// Store owns the wallet session. It is mutated only by the orchestrators'
// terminal commit and by explicit disconnect; concurrent reads are safe.
type Store struct {
	lock    sync.RWMutex
	session Session
	phase   Phase
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current session.
func (s *Store) Snapshot() Session {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.session
}

// Connected reports whether a wallet is connected.
func (s *Store) Connected() bool {
	return s.Snapshot().Connected
}

// Phase returns the current connect-attempt phase.
func (s *Store) Phase() Phase {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.phase
}

// TryBeginConnect claims the single connect slot. It returns false when a
// sign-in is already in flight, in which case the caller must no-op.
func (s *Store) TryBeginConnect() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.phase == PhaseInFlight {
		return false
	}
	s.phase = PhaseInFlight
	return true
}

// EndConnect releases the connect slot without touching the session, for
// sign-in sequences that fail before commit.
func (s *Store) EndConnect() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.phase = PhaseIdle
}

// CommitConnect stores the verified session atomically and releases the
// connect slot. The address is normalized before it is stored; an address
// that normalizes to empty is rejected so a connected session always carries
// a non-empty address.
func (s *Store) CommitConnect(address, displayName string) error {
	normalized := NormalizeAddress(address)
	if normalized == "" {
		return errors.New("[Store.CommitConnect] address is required")
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.session = Session{
		Connected:   true,
		Address:     normalized,
		DisplayName: displayName,
	}
	s.phase = PhaseIdle
	return nil
}

// Disconnect clears the session. There is no host-side disconnect command;
// forgetting the local state is the whole operation.
func (s *Store) Disconnect() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.session = Session{}
	s.phase = PhaseIdle
}
