package storage

import (
	"errors"
	"sort"
	"sync"

	"github.com/bobthearsonist/meeting-coach/pkg/models"
)

var ErrSessionNotFound = errors.New("session not found")

// MemoryStore keeps finished session records for fast lookups while the
// process lives. The disk store is the durable copy.
type MemoryStore interface {
	SaveSession(record *models.SessionRecord) error
	GetSession(id string) (*models.SessionRecord, error)
	ListSessions() ([]*models.SessionRecord, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.SessionRecord
}

func NewMemoryStore() MemoryStore {
	return &memoryStore{
		sessions: make(map[string]*models.SessionRecord),
	}
}

func (s *memoryStore) SaveSession(record *models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[record.ID] = record
	return nil
}

func (s *memoryStore) GetSession(id string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return record, nil
}

func (s *memoryStore) ListSessions() ([]*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*models.SessionRecord, 0, len(s.sessions))
	for _, r := range s.sessions {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}
