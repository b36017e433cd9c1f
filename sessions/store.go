package sessions

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Store owns the Session. SetCredentials and Clear are the only mutators; readers
// receive copies from Snapshot and never share memory with the store.
type Store struct {
	mu          sync.RWMutex
	session     Session
	subscribers map[int]func(Session)
	nextSubID   int
}

func NewStore() *Store {
	return &Store{
		subscribers: make(map[int]func(Session)),
	}
}

// Snapshot returns a copy of the current session
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.session)
}

// SetCredentials marks the session authenticated. A nil profile keeps the user
// signed in without profile data (e.g. the profile fetch failed transiently).
func (s *Store) SetCredentials(profile *Profile) {
	s.mu.Lock()
	s.session = Session{Authenticated: true}
	if profile != nil {
		p := *profile
		s.session.Profile = &p
	}
	snapshot, subs := s.publishLocked()
	s.mu.Unlock()

	log.Debug().Bool("profile", profile != nil).Msg("session credentials set")
	notify(subs, snapshot)
}

// Clear resets the session to its initial, signed-out state
func (s *Store) Clear() {
	s.mu.Lock()
	wasAuthenticated := s.session.Authenticated
	s.session = Session{}
	snapshot, subs := s.publishLocked()
	s.mu.Unlock()

	if wasAuthenticated {
		log.Info().Msg("session cleared")
	}
	notify(subs, snapshot)
}

// Subscribe registers fn to be called with a snapshot after every write.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Session)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) publishLocked() (Session, []func(Session)) {
	subs := make([]func(Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return copySession(s.session), subs
}

func notify(subs []func(Session), snapshot Session) {
	for _, fn := range subs {
		fn(copySession(snapshot))
	}
}

func copySession(s Session) Session {
	if s.Profile != nil {
		p := *s.Profile
		s.Profile = &p
	}
	return s
}
