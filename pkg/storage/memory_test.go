package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/bobthearsonist/meeting-coach/pkg/models"
)

func record(id string, started time.Time) *models.SessionRecord {
	return &models.SessionRecord{
		ID:        id,
		StartedAt: started,
		StoppedAt: started.Add(time.Minute),
		Summary: models.TimelineSummary{
			DominantState: models.StateCalm,
			TotalEntries:  3,
		},
	}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	s := NewMemoryStore()
	want := record("s1", time.Now())

	if err := s.SaveSession(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetSession("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "s1" || got.Summary.DominantState != models.StateCalm {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetSession("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStore_ListOrderedByStart(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now()
	s.SaveSession(record("later", base.Add(time.Hour)))
	s.SaveSession(record("earlier", base))

	records, err := s.ListSessions()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len: got %d, want 2", len(records))
	}
	if records[0].ID != "earlier" || records[1].ID != "later" {
		t.Errorf("order: got %s, %s", records[0].ID, records[1].ID)
	}
}

func TestDiskStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	want := record("s1", time.Now())
	want.Entries = []models.AnalysisResult{
		{Timestamp: 4, EmotionalState: models.StateCalm, FillerCounts: map[string]int{"um": 1}},
	}

	if err := s.SaveSession(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetSession("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].FillerCounts["um"] != 1 {
		t.Errorf("entries: %+v", got.Entries)
	}

	if _, err := s.GetSession("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing: got %v, want ErrSessionNotFound", err)
	}
}

func TestArchive_MemoryFirstThenDisk(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer disk.Close()

	archive := &Archive{Mem: NewMemoryStore(), Disk: disk}
	if err := archive.SaveSession(record("s1", time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := archive.Mem.GetSession("s1"); err != nil {
		t.Errorf("memory copy missing: %v", err)
	}
	if _, err := archive.Disk.GetSession("s1"); err != nil {
		t.Errorf("disk copy missing: %v", err)
	}
	if _, err := archive.GetSession("s1"); err != nil {
		t.Errorf("archive get: %v", err)
	}

	records, err := archive.ListSessions()
	if err != nil {
		t.Fatalf("archive list: %v", err)
	}
	if len(records) != 1 || records[0].ID != "s1" {
		t.Errorf("archive list: got %d records", len(records))
	}
}
