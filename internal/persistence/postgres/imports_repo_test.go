package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestImportsCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImportsRepo(db, 5*time.Second)

	mock.ExpectQuery(`INSERT INTO import_checkpoints`).
		WithArgs("dest-uuid", string(model.ImportPending), true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	id, err := repo.Create(context.Background(), persistence.ImportCheckpoint{
		DestinationUUID: "dest-uuid",
		Resumable:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportsUpdateStatusLegalTransition(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImportsRepo(db, 5*time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM import_checkpoints WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(model.ImportInProgress)))
	mock.ExpectExec(`UPDATE import_checkpoints SET status`).
		WithArgs(int64(7), string(model.ImportPaused), true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), 7, model.ImportPaused)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportsUpdateStatusIllegalTransition(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImportsRepo(db, 5*time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM import_checkpoints WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(model.ImportCompleted)))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), 7, model.ImportInProgress)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportsUpdateStatusTerminalClearsResumable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImportsRepo(db, 5*time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM import_checkpoints WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(model.ImportInProgress)))
	// CANCELLED is terminal: resumable flips to false.
	mock.ExpectExec(`UPDATE import_checkpoints SET status`).
		WithArgs(int64(7), string(model.ImportCancelled), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), 7, model.ImportCancelled)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportsGetByIDMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImportsRepo(db, 5*time.Second)

	mock.ExpectQuery(`SELECT .+ FROM import_checkpoints WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	cp, err := repo.GetByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestImportsSaveProgress(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImportsRepo(db, 5*time.Second)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE import_checkpoints`).
		WithArgs(int64(7), date, "2024-06-01.json.gz", int64(1500), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveProgress(context.Background(), 7, date, "2024-06-01.json.gz", 1500, 3)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
