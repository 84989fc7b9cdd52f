package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"

	"github.com/bobthearsonist/meeting-coach/pkg/models"
)

// DiskStore persists session records across restarts so post-session
// summaries survive the process.
type DiskStore interface {
	SaveSession(record *models.SessionRecord) error
	GetSession(id string) (*models.SessionRecord, error)
	Close() error
}

type diskStore struct {
	db *badger.DB
}

func NewDiskStore(path string) (DiskStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &diskStore{db: db}, nil
}

func (s *diskStore) SaveSession(record *models.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(record.ID), data)
	})
}

func (s *diskStore) GetSession(id string) (*models.SessionRecord, error) {
	var record models.SessionRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &record, nil
}

func (s *diskStore) Close() error {
	return s.db.Close()
}

// Archive fans session records out to the in-memory and on-disk stores so
// the pipeline only needs one SaveSession target.
type Archive struct {
	Mem  MemoryStore
	Disk DiskStore
}

func (a *Archive) SaveSession(record *models.SessionRecord) error {
	if err := a.Mem.SaveSession(record); err != nil {
		return err
	}
	return a.Disk.SaveSession(record)
}

// GetSession checks memory first, then disk (records from earlier runs).
func (a *Archive) GetSession(id string) (*models.SessionRecord, error) {
	if record, err := a.Mem.GetSession(id); err == nil {
		return record, nil
	}
	return a.Disk.GetSession(id)
}

// ListSessions returns the sessions recorded by this process, oldest first.
// Records from earlier runs stay reachable by ID through GetSession.
func (a *Archive) ListSessions() ([]*models.SessionRecord, error) {
	return a.Mem.ListSessions()
}
