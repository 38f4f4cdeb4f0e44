package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/zakazai/tracklog/internal/types"
)

// tableCodec converts a whole table to and from one file format
type tableCodec interface {
	ext() string
	encode(w io.Writer, table *types.Table) error
	decode(path, name string) (*types.Table, error)
}

// FileStorage keeps one file per dataset in a directory. Saves go to a
// temporary file in the same directory that is renamed over the old file
// only after it was fully written and synced.
type FileStorage struct {
	dir    string
	codec  tableCodec
	logger *types.Logger
	mu     sync.Mutex
}

func newFileStorage(dir string, codec tableCodec, logger *types.Logger) *FileStorage {
	if logger == nil {
		logger = types.GlobalLogger
	}
	return &FileStorage{
		dir:    dir,
		codec:  codec,
		logger: logger,
	}
}

// Dir returns the directory holding the dataset files
func (s *FileStorage) Dir() string {
	return s.dir
}

func (s *FileStorage) path(name string) string {
	return filepath.Join(s.dir, name+"."+s.codec.ext())
}

func (s *FileStorage) Location(name string) string {
	return s.path(name)
}

func (s *FileStorage) Exists(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	info, err := os.Stat(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", s.path(name))
	}
	return true, nil
}

func (s *FileStorage) Load(name string) (*types.Table, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(name)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, path)
	}

	table, err := s.codec.decode(path, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	table.Normalize()
	s.logger.Debug("loaded %d rows from %s", len(table.Rows), path)
	return table, nil
}

func (s *FileStorage) Save(table *types.Table) error {
	if err := ValidateName(table.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	path := s.path(table.Name)
	w, err := renameio.NewPendingFile(path, renameio.WithPermissions(0644))
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	// no-op once replaced; otherwise drops the temporary file
	defer w.Cleanup()

	if err := s.codec.encode(w, table); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := w.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	s.logger.Debug("saved %d rows to %s", len(table.Rows), path)
	return nil
}

func (s *FileStorage) ShowTables() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*."+s.codec.ext()))
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, strings.TrimSuffix(filepath.Base(m), "."+s.codec.ext()))
	}
	sort.Strings(tables)
	return tables, nil
}

func (s *FileStorage) Close() error {
	return nil
}

// rowText renders a row as text cells aligned to width
func rowText(row types.Row, width int) []string {
	cells := make([]string, width)
	for i := 0; i < width && i < len(row); i++ {
		cells[i] = types.FormatValue(row[i])
	}
	return cells
}

// textRow keeps text cells as strings; the empty cell is nil
func textRow(cells []string) types.Row {
	row := make(types.Row, len(cells))
	for i, c := range cells {
		if c != "" {
			row[i] = c
		}
	}
	return row
}
