package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(db, zap.NewNop()), mock
}

func TestListJobs_QueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .+ FROM jobs").WillReturnError(errors.New("disk I/O error"))

	_, err := store.ListJobs(context.Background(), model.JobFilter{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPersistence))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionJob_ExecError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE jobs SET status").WillReturnError(errors.New("database is locked"))

	_, err := store.TransitionJob(context.Background(), "job-1",
		model.StatusProcessing, model.StatusPending)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPersistence))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult_RollsBackOnInsertError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM results").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO results").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := store.SaveResult(context.Background(), &model.Result{
		JobID:    "job-1",
		Text:     "text",
		Language: "en",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPersistence))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_QueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .+ FROM results").WillReturnError(errors.New("no such table"))

	_, err := store.Search(context.Background(), "query", "", 10)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPersistence))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatistics_QueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("database is locked"))

	_, err := store.Statistics(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPersistence))
}
