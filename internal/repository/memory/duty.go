package memory

import (
	"context"
	"sort"
	"sync"

	"courier-dispatch/internal/domain"
)

// DutyStore keeps duty sessions in a map.
type DutyStore struct {
	mu       sync.RWMutex
	sessions map[domain.PartnerID]domain.DutySession
}

// NewDutyStore creates an empty DutyStore.
func NewDutyStore() *DutyStore {
	return &DutyStore{sessions: make(map[domain.PartnerID]domain.DutySession)}
}

// Get returns the stored session of p.
func (s *DutyStore) Get(_ context.Context, p domain.PartnerID) (domain.DutySession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[p]
	return sess, ok, nil
}

// Put stores sess.
func (s *DutyStore) Put(_ context.Context, sess domain.DutySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Partner] = sess
	return nil
}

// List returns all sessions ordered by partner id.
func (s *DutyStore) List(_ context.Context) ([]domain.DutySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DutySession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Partner < out[j].Partner })
	return out, nil
}
