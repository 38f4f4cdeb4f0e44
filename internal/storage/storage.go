package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zakazai/tracklog/internal/types"
)

// Store is a handle on the backing stores of a set of datasets. A Store
// loads and saves whole tables; Save replaces the previous content of the
// dataset atomically, so a failed Save leaves the old table readable.
type Store interface {
	// Exists reports whether a backing store exists for the dataset
	Exists(name string) (bool, error)
	// Load reads the full table. It returns types.ErrNotFound when the
	// dataset has no backing store.
	Load(name string) (*types.Table, error)
	// Save replaces the dataset's content with table
	Save(table *types.Table) error
	// ShowTables lists the datasets present in the store
	ShowTables() ([]string, error)
	// Location describes where a dataset is kept, for messages
	Location(name string) string
	Close() error
}

// ValidateName rejects dataset names that cannot map to a storage location
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty name", types.ErrInvalidName)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", types.ErrInvalidName, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", types.ErrInvalidName, name)
	}
	return nil
}

// InMemoryStorage keeps tables in a map. It is used for tests and dry runs.
type InMemoryStorage struct {
	mu     sync.RWMutex
	tables map[string]*types.Table

	// SaveHook, when set, runs before a save is applied. A non-nil error
	// aborts the save and leaves the stored table untouched.
	SaveHook func(table *types.Table) error
}

// NewInMemoryStorage creates a new in-memory storage
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		tables: make(map[string]*types.Table),
	}
}

func (s *InMemoryStorage) Exists(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.tables[name]
	return exists, nil
}

func (s *InMemoryStorage) Load(name string) (*types.Table, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, exists := s.tables[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, name)
	}
	return table.Clone(), nil
}

func (s *InMemoryStorage) Save(table *types.Table) error {
	if err := ValidateName(table.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveHook != nil {
		if err := s.SaveHook(table); err != nil {
			return err
		}
	}
	s.tables[table.Name] = table.Clone()
	return nil
}

func (s *InMemoryStorage) ShowTables() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := make([]string, 0, len(s.tables))
	for name := range s.tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables, nil
}

func (s *InMemoryStorage) Location(name string) string {
	return "memory:" + name
}

func (s *InMemoryStorage) Close() error {
	return nil
}
