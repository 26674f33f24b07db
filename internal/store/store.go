// Package store holds the in-memory incident snapshot the dashboard reads.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/near-miss-analytics/internal/domain"
)

// ErrNotLoaded is returned by CheckReadiness before the first snapshot.
var ErrNotLoaded = errors.New("no dataset loaded yet")

// Snapshot is an immutable view of the loaded incidents. Callers must not
// modify Records.
type Snapshot struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	LoadedAt time.Time         `json:"loaded_at"`
	Total    int               `json:"total"`
	Dropped  int               `json:"dropped"`
	Records  []domain.Incident `json:"-"`
}

// Store publishes snapshots. Every change produces a new snapshot with a
// fresh ID, so anything keyed by snapshot ID is invalidated automatically.
type Store struct {
	clock clockwork.Clock

	mu        sync.RWMutex
	current   Snapshot
	loaded    bool
	onPublish func(Snapshot)
}

// New creates an empty store. Pass a nil clock to use real time.
func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{clock: clock}
}

// OnPublish registers fn to run, under the store lock, after every new
// snapshot. It must not call back into the store.
func (s *Store) OnPublish(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPublish = fn
}

// Replace swaps in a freshly loaded record set.
func (s *Store) Replace(records []domain.Incident, source string, dropped int) Snapshot {
	owned := make([]domain.Incident, len(records))
	copy(owned, records)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(s.newSnapshot(owned, source, dropped))
	return s.current
}

// LoadBatch appends streamed incidents. It implements pipeline.BatchLoader.
func (s *Store) LoadBatch(_ context.Context, records []domain.Incident) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	merged := make([]domain.Incident, 0, len(prev.Records)+len(records))
	merged = append(merged, prev.Records...)
	merged = append(merged, records...)

	source := prev.Source
	if source == "" {
		source = "stream"
	}
	s.publish(s.newSnapshot(merged, source, prev.Dropped))
	return nil
}

// Current returns the latest snapshot. Before the first load it is empty.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CheckReadiness returns nil once a snapshot has been published.
func (s *Store) CheckReadiness(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (s *Store) publish(snap Snapshot) {
	s.current = snap
	s.loaded = true
	if s.onPublish != nil {
		s.onPublish(snap)
	}
}

func (s *Store) newSnapshot(records []domain.Incident, source string, dropped int) Snapshot {
	return Snapshot{
		ID:       uuid.NewString(),
		Source:   source,
		LoadedAt: s.clock.Now().UTC(),
		Total:    len(records),
		Dropped:  dropped,
		Records:  records,
	}
}
