package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zakazai/tracklog/internal/types"
	_ "modernc.org/sqlite"
)

// SQLStorage keeps every dataset as a table of one SQL database. Columns
// are declared without a type so each cell keeps the storage class it was
// saved with. Times and bools are saved as text and load as strings.
type SQLStorage struct {
	db     *sql.DB
	source string
	logger *types.Logger
	mu     sync.Mutex
}

// OpenSQLiteStorage opens (creating if needed) the sqlite database at path
func OpenSQLiteStorage(path string, logger *types.Logger) (*SQLStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite file: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return NewSQLStorage(db, path, logger), nil
}

// NewSQLStorage wraps an open database handle. source is only used in messages.
func NewSQLStorage(db *sql.DB, source string, logger *types.Logger) *SQLStorage {
	if logger == nil {
		logger = types.GlobalLogger
	}
	return &SQLStorage{
		db:     db,
		source: source,
		logger: logger,
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLStorage) Location(name string) string {
	return s.source + "#" + name
}

func (s *SQLStorage) Exists(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	var found string
	err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLStorage) Load(name string) (*types.Table, error) {
	exists, err := s.Exists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, s.Location(name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", quoteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	table := types.NewTable(name, columns)

	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", name, err)
		}
		row := make(types.Row, len(columns))
		for i, v := range values {
			row[i] = types.NormalizeValue(v)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("loaded %d rows from %s", len(table.Rows), s.Location(name))
	return table, nil
}

func sqlArg(v types.Value) interface{} {
	switch val := v.(type) {
	case nil, string, int64, float64:
		return val
	case time.Time:
		return types.FormatValue(val)
	default:
		return types.FormatValue(types.NormalizeValue(val))
	}
}

// Save drops and recreates the dataset's table inside one transaction
func (s *SQLStorage) Save(table *types.Table) (err error) {
	if err := ValidateName(table.Name); err != nil {
		return err
	}
	if len(table.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", table.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warning("rollback of %s failed: %v", table.Name, rbErr)
			}
		}
	}()

	ident := quoteIdent(table.Name)
	if _, err = tx.Exec("DROP TABLE IF EXISTS " + ident); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table.Name, err)
	}

	cols := make([]string, len(table.Columns))
	marks := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = quoteIdent(c)
		marks[i] = "?"
	}
	if _, err = tx.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(cols, ", "))); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table.Name, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", ident, strings.Join(marks, ", "))
	for i, row := range table.Rows {
		args := make([]interface{}, len(table.Columns))
		for j := range args {
			if j < len(row) {
				args[j] = sqlArg(row[j])
			}
		}
		if _, err = tx.Exec(insert, args...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, table.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table.Name, err)
	}
	s.logger.Debug("saved %d rows to %s", len(table.Rows), s.Location(table.Name))
	return nil
}

func (s *SQLStorage) ShowTables() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
