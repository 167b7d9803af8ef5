package history

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/shepherd/internal/loggy"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLRepository(db, loggy.NewNoopLogger()), mock
}

func TestSaveBatch(t *testing.T) {
	repo, mock := newMockRepo(t)

	batch := NewBatch(TriggerManual, 3)
	batch.Completed = 2
	batch.Failed = 1
	batch.FinishedAt = batch.StartedAt.Add(time.Second)

	mock.ExpectExec("INSERT INTO sync_batches").
		WithArgs(batch.ID, batch.Trigger, batch.Total, batch.Completed, batch.Failed, batch.StartedAt, batch.FinishedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SaveBatch(context.Background(), batch))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveOutcome(t *testing.T) {
	repo, mock := newMockRepo(t)

	o := NewOutcome("batch-01", "/p/app", "app")
	o.RepoName = "app"
	o.Status = OutcomeSynced
	o.FilesCommitted = 4
	o.CreatedRepo = true

	mock.ExpectExec("INSERT INTO sync_outcomes").
		WithArgs(o.ID, o.BatchID, o.ProjectPath, o.ProjectName, o.RepoName, o.Status, o.FilesCommitted, o.CreatedRepo, o.Error, o.FinishedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SaveOutcome(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBatchNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM sync_batches").
		WithArgs("batch-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "trigger_kind", "total", "completed", "failed", "started_at", "finished_at"}))

	_, err := repo.GetBatch(context.Background(), "batch-missing")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestRecentBatches(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "trigger_kind", "total", "completed", "failed", "started_at", "finished_at"}).
		AddRow("batch-02", TriggerInterval, 2, 2, 0, now, now.Add(time.Second)).
		AddRow("batch-01", TriggerManual, 1, 0, 1, now.Add(-time.Hour), now.Add(-time.Hour+time.Second))

	mock.ExpectQuery("SELECT (.+) FROM sync_batches ORDER BY started_at DESC LIMIT 10").
		WillReturnRows(rows)

	batches, err := repo.RecentBatches(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "batch-02", batches[0].ID)
	assert.Equal(t, TriggerManual, batches[1].Trigger)
	assert.Equal(t, 1, batches[1].Failed)
}

func TestOutcomesForBatch(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "batch_id", "project_path", "project_name", "repo_name", "status", "files_committed", "created_repo", "error", "finished_at"}).
		AddRow("out-01", "batch-01", "/p/a", "a", "a", OutcomeSynced, 3, false, "", now).
		AddRow("out-02", "batch-01", "/p/b", "b", "", OutcomeError, 0, false, "push failed", now)

	mock.ExpectQuery("SELECT (.+) FROM sync_outcomes WHERE batch_id = \\?").
		WithArgs("batch-01").
		WillReturnRows(rows)

	outcomes, err := repo.OutcomesForBatch(context.Background(), "batch-01")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, OutcomeSynced, outcomes[0].Status)
	assert.Equal(t, "push failed", outcomes[1].Error)
}

func TestOutcomesForProjectDefaultLimit(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM sync_outcomes WHERE project_path = \\? ORDER BY finished_at DESC LIMIT 20").
		WithArgs("/p/a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "batch_id", "project_path", "project_name", "repo_name", "status", "files_committed", "created_repo", "error", "finished_at"}))

	outcomes, err := repo.OutcomesForProject(context.Background(), "/p/a", 0)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}
