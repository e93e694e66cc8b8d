// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deepguard/backend/internal/models"
	"github.com/deepguard/backend/internal/storage"
)

// ErrInjected is returned by MockStorage when FailRegister is set.
var ErrInjected = errors.New("injected storage failure")

// MockStorage implements storage.Store for testing
type MockStorage struct {
	files        map[string]*models.UploadedFile
	deleted      []string
	FailRegister bool
	OnRegister   func() // runs after a successful Register, outside the lock
	mu           sync.RWMutex
}

// NewMockStorage creates an empty mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files: make(map[string]*models.UploadedFile),
	}
}

func (m *MockStorage) Register(name, mediaType string, size int64) (*models.UploadedFile, error) {
	file, err := m.register(name, mediaType, size)
	if err == nil && m.OnRegister != nil {
		m.OnRegister()
	}
	return file, err
}

func (m *MockStorage) register(name, mediaType string, size int64) (*models.UploadedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailRegister {
		return nil, ErrInjected
	}

	file := &models.UploadedFile{
		ID:         generateTestID(),
		Name:       name,
		MediaType:  mediaType,
		Size:       size,
		UploadedAt: time.Now(),
	}
	m.files[file.ID] = file
	return file, nil
}

func (m *MockStorage) Get(id string) (*models.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return file, nil
}

func (m *MockStorage) List(limit int) ([]*models.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []*models.UploadedFile
	for _, file := range m.files {
		files = append(files, file)
		if limit > 0 && len(files) >= limit {
			break
		}
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[id]; !exists {
		return errors.New("file not found")
	}
	delete(m.files, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *MockStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Deleted returns the IDs removed so far, in order
func (m *MockStorage) Deleted() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.deleted...)
}

var (
	testIDCounter int
	testIDMutex   sync.Mutex
)

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}
