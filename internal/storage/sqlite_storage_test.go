package storage_test

import (
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakazai/tracklog/internal/storage"
	"github.com/zakazai/tracklog/internal/types"
)

func moodTable() *types.Table {
	table := types.NewTable("mood", []string{"Date", "Mood"})
	table.Rows = append(table.Rows, types.Row{"2024-01-01", "Happy"})
	return table
}

func TestSQLStorageSaveCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "mood"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "mood" ("Date", "Mood")`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "mood" VALUES (?, ?)`)).
		WithArgs("2024-01-01", "Happy").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	s := storage.NewSQLStorage(db, "mock", types.NopLogger())
	require.NoError(t, s.Save(moodTable()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorageSaveRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	s := storage.NewSQLStorage(db, "mock", types.NopLogger())
	err = s.Save(moodTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorageExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM sqlite_master").
		WithArgs("mood").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("mood"))
	mock.ExpectQuery("FROM sqlite_master").
		WithArgs("sleep").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	s := storage.NewSQLStorage(db, "mock", types.NopLogger())

	exists, err := s.Exists("mood")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Exists("sleep")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteFailedSaveKeepsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), storage.SQLiteFileName)
	s, err := storage.OpenSQLiteStorage(path, types.NopLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(moodTable()))

	// a duplicate column name makes CREATE TABLE fail after the DROP
	broken := types.NewTable("mood", []string{"Date", "Date"})
	require.Error(t, s.Save(broken))

	table, err := s.Load("mood")
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Mood"}, table.Columns)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Happy", table.Text(0, "Mood"))
}

func TestSQLiteRejectsTableWithoutColumns(t *testing.T) {
	s, err := storage.OpenSQLiteStorage(filepath.Join(t.TempDir(), storage.SQLiteFileName), types.NopLogger())
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Save(types.NewTable("empty", nil)))
}
