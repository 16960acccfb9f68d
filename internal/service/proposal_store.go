package service

import (
	"sync"
	"time"

	"github.com/noah-isme/eduschedule-api/internal/dto"
)

// proposalStore keeps generated proposals in process until they expire.
type proposalStore struct {
	mu    sync.RWMutex
	items map[string]dto.TimetableProposal
	now   func() time.Time
}

func newProposalStore() *proposalStore {
	return &proposalStore{
		items: make(map[string]dto.TimetableProposal),
		now:   time.Now,
	}
}

func (s *proposalStore) Save(proposal dto.TimetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
	s.evictLocked()
}

func (s *proposalStore) Get(id string) (dto.TimetableProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return dto.TimetableProposal{}, false
	}
	if !s.now().Before(proposal.ExpiresAt) {
		s.Delete(id)
		return dto.TimetableProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// Clear drops every proposal and reports how many were held.
func (s *proposalStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	s.items = make(map[string]dto.TimetableProposal)
	return n
}

func (s *proposalStore) evictLocked() {
	now := s.now()
	for id, proposal := range s.items {
		if !now.Before(proposal.ExpiresAt) {
			delete(s.items, id)
		}
	}
}
