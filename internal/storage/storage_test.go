package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakazai/tracklog/internal/storage"
	"github.com/zakazai/tracklog/internal/types"
)

func newStores(t *testing.T) map[string]storage.Store {
	t.Helper()
	dir := t.TempDir()
	logger := types.NopLogger()

	sqlite, err := storage.OpenSQLiteStorage(filepath.Join(dir, "sqlite", storage.SQLiteFileName), logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]storage.Store{
		"memory":  storage.NewInMemoryStorage(),
		"csv":     storage.NewCSVStorage(filepath.Join(dir, "csv"), logger),
		"xlsx":    storage.NewXLSXStorage(filepath.Join(dir, "xlsx"), logger),
		"parquet": storage.NewParquetStorage(filepath.Join(dir, "parquet"), logger),
		"sqlite":  sqlite,
	}
}

func sampleTable() *types.Table {
	table := types.NewTable("mood_log", []string{"Date", "Time", "Mood", "Mood Score", "Lay Awake Minutes", "Note"})
	table.Rows = append(table.Rows,
		types.Row{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "08:30:00", "Happy", 7.5, int64(10), nil},
		types.Row{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "22:05:00", "On edge", 3.0, int64(0), "tired, \"very\""},
	)
	return table
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			exists, err := s.Exists("mood_log")
			require.NoError(t, err)
			assert.False(t, exists)

			require.NoError(t, s.Save(sampleTable()))

			exists, err = s.Exists("mood_log")
			require.NoError(t, err)
			assert.True(t, exists)

			table, err := s.Load("mood_log")
			require.NoError(t, err)
			assert.Equal(t, "mood_log", table.Name)
			assert.Equal(t, []string{"Date", "Time", "Mood", "Mood Score", "Lay Awake Minutes", "Note"}, table.Columns)
			require.Len(t, table.Rows, 2)

			assert.Equal(t, "2024-01-01", table.Text(0, "Date"))
			assert.Equal(t, "08:30:00", table.Text(0, "Time"))
			assert.Equal(t, "Happy", table.Text(0, "Mood"))
			assert.Equal(t, "7.5", table.Text(0, "Mood Score"))
			assert.Equal(t, "10", table.Text(0, "Lay Awake Minutes"))
			assert.Nil(t, table.Cell(0, "Note"))

			assert.Equal(t, "On edge", table.Text(1, "Mood"))
			assert.Equal(t, "3", table.Text(1, "Mood Score"))
			assert.Equal(t, `tired, "very"`, table.Text(1, "Note"))

			tables, err := s.ShowTables()
			require.NoError(t, err)
			assert.Equal(t, []string{"mood_log"}, tables)
		})
	}
}

func TestStoreKeepsTextCells(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			table := types.NewTable("notes", []string{"Note", "Count", "Empty"})
			table.Rows = append(table.Rows,
				types.Row{"007", int64(3), nil},
				types.Row{"1e3", 2.5, nil},
				types.Row{"3.10", nil, nil},
				types.Row{"+5", nil, nil},
				types.Row{"false", nil, nil},
				types.Row{"2024-01-01", nil, nil},
			)
			require.NoError(t, s.Save(table))

			first, err := s.Load("notes")
			require.NoError(t, err)
			for i, want := range []string{"007", "1e3", "3.10", "+5", "false", "2024-01-01"} {
				assert.Equal(t, want, first.Cell(i, "Note"), "row %d", i)
				assert.Nil(t, first.Cell(i, "Empty"), "row %d", i)
			}

			// saving what was loaded stores the same cells again
			require.NoError(t, s.Save(first))
			second, err := s.Load("notes")
			require.NoError(t, err)
			assert.Equal(t, first.Rows, second.Rows)
		})
	}
}

func TestTypedStoresKeepCellTypes(t *testing.T) {
	stores := newStores(t)
	moment := time.Date(2024, 1, 2, 8, 15, 0, 0, time.UTC)

	for _, name := range []string{"memory", "xlsx", "parquet", "sqlite"} {
		s := stores[name]
		t.Run(name, func(t *testing.T) {
			table := types.NewTable("typed", []string{"Int", "Float", "Text"})
			table.Rows = append(table.Rows, types.Row{int64(10), 7.5, "10"})
			require.NoError(t, s.Save(table))

			loaded, err := s.Load("typed")
			require.NoError(t, err)
			assert.Equal(t, int64(10), loaded.Cell(0, "Int"))
			assert.Equal(t, 7.5, loaded.Cell(0, "Float"))
			assert.Equal(t, "10", loaded.Cell(0, "Text"))
		})
	}

	t.Run("parquet times", func(t *testing.T) {
		s := stores["parquet"]
		table := types.NewTable("times", []string{"At", "Done"})
		table.Rows = append(table.Rows, types.Row{moment, true})
		require.NoError(t, s.Save(table))

		loaded, err := s.Load("times")
		require.NoError(t, err)
		assert.Equal(t, moment, loaded.Cell(0, "At"))
		assert.Equal(t, true, loaded.Cell(0, "Done"))
	})
}

func TestStoreEmptyTableKeepsHeader(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(types.NewTable("sleep_log", []string{"Date", "Sleep Quality"})))

			table, err := s.Load("sleep_log")
			require.NoError(t, err)
			assert.Equal(t, []string{"Date", "Sleep Quality"}, table.Columns)
			assert.Len(t, table.Rows, 0)
		})
	}
}

func TestStoreSaveReplacesContent(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(sampleTable()))

			smaller := types.NewTable("mood_log", []string{"Mood"})
			smaller.Rows = append(smaller.Rows, types.Row{"Relaxed"})
			require.NoError(t, s.Save(smaller))

			table, err := s.Load("mood_log")
			require.NoError(t, err)
			assert.Equal(t, []string{"Mood"}, table.Columns)
			require.Len(t, table.Rows, 1)
			assert.Equal(t, "Relaxed", table.Text(0, "Mood"))
		})
	}
}

func TestStoreLoadMissing(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load("nonexistent")
			assert.True(t, errors.Is(err, types.ErrNotFound), "got %v", err)
		})
	}
}

func TestStoreRejectsInvalidNames(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", "  ", "../escape", `a\b`, ".."} {
				_, err := s.Exists(bad)
				assert.True(t, errors.Is(err, types.ErrInvalidName), "Exists(%q): %v", bad, err)

				err = s.Save(types.NewTable(bad, []string{"A"}))
				assert.True(t, errors.Is(err, types.ErrInvalidName), "Save(%q): %v", bad, err)
			}
		})
	}
}

func TestFileStoresRejectCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	logger := types.NopLogger()

	tests := []struct {
		name    string
		store   *storage.FileStorage
		content string
	}{
		{"csv ragged rows", storage.NewCSVStorage(dir, logger), "Date,Mood\n2024-01-01,Happy,extra\n"},
		{"csv bare quote", storage.NewCSVStorage(dir, logger), "Date,Mood\n2024-01-01,Ha\"ppy\n"},
		{"xlsx not a zip", storage.NewXLSXStorage(dir, logger), "definitely not a workbook"},
		{"parquet garbage", storage.NewParquetStorage(dir, logger), "PAR1 but nothing else"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.store.Location("broken")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			exists, err := tt.store.Exists("broken")
			require.NoError(t, err)
			assert.True(t, exists)

			_, err = tt.store.Load("broken")
			assert.Error(t, err)
			assert.False(t, errors.Is(err, types.ErrNotFound))
		})
	}
}

func TestFileStoreLocations(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "mood_log.csv"), storage.NewCSVStorage(dir, nil).Location("mood_log"))
	assert.Equal(t, filepath.Join(dir, "mood_log.xlsx"), storage.NewXLSXStorage(dir, nil).Location("mood_log"))
	assert.Equal(t, filepath.Join(dir, "mood_log.parquet"), storage.NewParquetStorage(dir, nil).Location("mood_log"))
}

func TestInMemorySaveHookKeepsPreviousTable(t *testing.T) {
	s := storage.NewInMemoryStorage()
	require.NoError(t, s.Save(sampleTable()))

	s.SaveHook = func(*types.Table) error { return errors.New("disk full") }
	err := s.Save(types.NewTable("mood_log", []string{"Other"}))
	assert.EqualError(t, err, "disk full")

	table, err := s.Load("mood_log")
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}

func TestInMemoryLoadReturnsCopy(t *testing.T) {
	s := storage.NewInMemoryStorage()
	require.NoError(t, s.Save(sampleTable()))

	table, err := s.Load("mood_log")
	require.NoError(t, err)
	table.Rows[0][2] = "Changed"
	table.Rows = table.Rows[:1]

	again, err := s.Load("mood_log")
	require.NoError(t, err)
	assert.Len(t, again.Rows, 2)
	assert.Equal(t, "Happy", again.Text(0, "Mood"))
}

func TestNewStorage(t *testing.T) {
	dir := t.TempDir()

	for _, typ := range []storage.StorageType{
		storage.InMemoryStorageType,
		storage.CSVStorageType,
		storage.XLSXStorageType,
		storage.ParquetStorageType,
		storage.SQLiteStorageType,
	} {
		s, err := storage.NewStorage(storage.StorageConfig{Type: typ, Dir: dir, Logger: types.NopLogger()})
		require.NoError(t, err, typ)
		assert.NoError(t, s.Close())
	}

	_, err := storage.NewStorage(storage.StorageConfig{Type: "btree", Dir: dir})
	assert.Error(t, err)

	_, err = storage.NewStorage(storage.StorageConfig{Type: storage.CSVStorageType})
	assert.Error(t, err)
}
