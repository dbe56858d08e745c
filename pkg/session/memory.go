package session

import (
	"context"
	"sync"
	"time"

	"github.com/matzehuels/collage/pkg/layout"
	"github.com/matzehuels/collage/pkg/slots"
)

// MemoryStore is an in-process session store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

type entry struct {
	sess      *Session
	expiresAt time.Time
}

// NewMemoryStore creates a store whose sessions expire after ttl of
// inactivity. A non-positive ttl means DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, kind layout.Kind) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:        GenerateID(),
		Slots:     slots.NewStore(kind),
		CreatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &entry{sess: sess, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()
	return sess, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if now.After(e.expiresAt) {
		delete(s.sessions, id)
		e.sess.Slots.Reset()
		return nil, ErrNotFound
	}
	e.expiresAt = now.Add(s.ttl)
	return e.sess, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		// Discards in-flight loads still holding tickets.
		e.sess.Slots.Reset()
	}
	return nil
}

func (s *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	now := s.now()
	var expired []*Session

	s.mu.Lock()
	for id, e := range s.sessions {
		if now.After(e.expiresAt) {
			expired = append(expired, e.sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Slots.Reset()
	}
	return len(expired), nil
}

// Len returns the number of stored sessions, including expired ones not yet
// cleaned up.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunJanitor calls Cleanup every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = s.Cleanup(ctx)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
