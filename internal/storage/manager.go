package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/deepguard/backend/internal/models"
	"github.com/google/uuid"
)

// Store defines the interface for the upload metadata registry.
type Store interface {
	Register(name, mediaType string, size int64) (*models.UploadedFile, error)
	Get(id string) (*models.UploadedFile, error)
	List(limit int) ([]*models.UploadedFile, error)
	Delete(id string) error
	Len() int
}

// MemoryStore keeps upload metadata in memory. No file contents are stored.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*models.UploadedFile
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]*models.UploadedFile),
		now:   time.Now,
	}
}

// Register records a declared file and assigns it an ID.
func (s *MemoryStore) Register(name, mediaType string, size int64) (*models.UploadedFile, error) {
	if size < 0 {
		return nil, fmt.Errorf("negative size: %d", size)
	}

	info := &models.UploadedFile{
		ID:         uuid.New().String(),
		Name:       name,
		MediaType:  mediaType,
		Size:       size,
		UploadedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[info.ID] = info

	return info, nil
}

// Get retrieves file metadata by ID.
func (s *MemoryStore) Get(id string) (*models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	return info, nil
}

// List returns the most recent files, newest first.
func (s *MemoryStore) List(limit int) ([]*models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.UploadedFile, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file's metadata.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}
	delete(s.files, id)
	return nil
}

// Len returns the number of registered files.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
