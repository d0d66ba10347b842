package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	lock chan struct{}
	sess *Session
}

// Store maps user ids to sessions. Do serializes work per user while
// different users proceed concurrently.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[int64]*entry), now: time.Now}
}

func (s *Store) entryFor(userID int64) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{
			lock: make(chan struct{}, 1),
			sess: &Session{UserID: userID, State: StateIdle},
		}
		s.entries[userID] = e
	}
	return e
}

func (s *Store) acquire(ctx context.Context, userID int64) (*entry, error) {
	e := s.entryFor(userID)
	select {
	case e.lock <- struct{}{}:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do runs fn with exclusive access to the user's session, creating an idle
// one if needed. It waits for a concurrent Do on the same user and gives up
// when ctx is done.
func (s *Store) Do(ctx context.Context, userID int64, fn func(*Session) error) error {
	e, err := s.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer func() { <-e.lock }()
	err = fn(e.sess)
	e.sess.UpdatedAt = s.now()
	return err
}

// Get returns a copy of the session if the user has one.
func (s *Store) Get(userID int64) (View, bool) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if !ok {
		return View{UserID: userID, State: StateIdle}, false
	}
	e.lock <- struct{}{}
	defer func() { <-e.lock }()
	return e.sess.view(), true
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// WipeAll zeroes every signer. Used on shutdown.
func (s *Store) WipeAll() {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()
	for _, e := range entries {
		e.lock <- struct{}{}
		e.sess.WipeSigner()
		<-e.lock
	}
}
