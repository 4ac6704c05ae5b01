// Package history archives finished runs so the console can show past
// results after the engine has been reset for a new run.
package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/pulseline/pulseline/pkg/models"
)

var ErrNotFound = errors.New("run archive not found")

// Archive is the preserved final state of one run.
type Archive struct {
	ExecutionID string                 `json:"execution_id"`
	Run         models.Run             `json:"run"`
	Timeline    []models.TimelineEntry `json:"timeline"`
	ArchivedAt  time.Time              `json:"archived_at"`
}

// Store persists run archives keyed by execution id.
type Store interface {
	Save(ctx context.Context, archive *Archive) error
	Get(ctx context.Context, executionID string) (*Archive, error)
	List(ctx context.Context) ([]*Archive, error)
	Delete(ctx context.Context, executionID string) error
}

// MemoryStore keeps archives in process memory. It is the default store
// for consoles that do not configure Redis.
type MemoryStore struct {
	mu       sync.RWMutex
	archives map[string]*Archive
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{archives: make(map[string]*Archive)}
}

func (s *MemoryStore) Save(_ context.Context, archive *Archive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *archive
	copied.Timeline = append([]models.TimelineEntry(nil), archive.Timeline...)
	s.archives[archive.ExecutionID] = &copied

	return nil
}

func (s *MemoryStore) Get(_ context.Context, executionID string) (*Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	archive, ok := s.archives[executionID]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *archive

	return &copied, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	archives := make([]*Archive, 0, len(s.archives))

	for _, archive := range s.archives {
		copied := *archive
		archives = append(archives, &copied)
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].ArchivedAt.Before(archives[j].ArchivedAt)
	})

	return archives, nil
}

func (s *MemoryStore) Delete(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.archives[executionID]; !ok {
		return ErrNotFound
	}

	delete(s.archives, executionID)

	return nil
}
