package otpstore

import (
	"context"
	"sync"
	"time"

	"github.com/alphazero/academy/core/user"
)

type memEntry struct {
	user.OTPEntry
	expiresAt time.Time
}

// MemoryStore keeps codes in process; used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

var _ user.OTPStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry), now: time.Now}
}

// live returns the unexpired entry of email; must be called with the lock held.
func (s *MemoryStore) live(email string) *memEntry {
	e, ok := s.entries[email]
	if !ok {
		return nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, email)
		return nil
	}
	return e
}

func (s *MemoryStore) Save(_ context.Context, email, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[email] = &memEntry{OTPEntry: user.OTPEntry{Hash: hash}, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, email string) (user.OTPEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(email); e != nil {
		return e.OTPEntry, nil
	}
	return user.OTPEntry{}, user.ErrOTPNotFound
}

func (s *MemoryStore) IncrAttempts(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(email)
	if e == nil {
		return 0, user.ErrOTPNotFound
	}
	e.Attempts++
	return e.Attempts, nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, email)
	return nil
}
