package launcher

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

// ActiveChatIDKey names the chat the launcher reopens on the next start
const ActiveChatIDKey = "active_chat_id"

// LocalStorage is a small string key/value store that survives restarts
type LocalStorage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// DiskStorage keeps each item in its own file under a base directory
type DiskStorage struct {
	d *diskv.Diskv
}

// NewDiskStorage stores items under basePath
func NewDiskStorage(basePath string) *DiskStorage {
	return &DiskStorage{d: diskv.New(diskv.Options{
		BasePath:     basePath,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 64 * 1024,
	})}
}

// GetItem returns the stored value. Unreadable items count as absent.
func (s *DiskStorage) GetItem(key string) (string, bool) {
	if !s.d.Has(key) {
		return "", false
	}
	b, err := s.d.Read(key)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// SetItem writes value
func (s *DiskStorage) SetItem(key, value string) error {
	if err := s.d.Write(key, []byte(value)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes key; removing a missing key is not an error
func (s *DiskStorage) RemoveItem(key string) error {
	if err := s.d.Erase(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// MemoryStorage is a LocalStorage that lives for one process
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage creates an empty store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (s *MemoryStorage) GetItem(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *MemoryStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *MemoryStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
