package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tildaslashalef/shepherd/internal/loggy"
)

// ErrBatchNotFound is returned when a batch is not found
var ErrBatchNotFound = errors.New("sync batch not found")

// Repository defines the interface for sync-history persistence
type Repository interface {
	SaveBatch(ctx context.Context, batch *Batch) error
	SaveOutcome(ctx context.Context, outcome *Outcome) error
	GetBatch(ctx context.Context, id string) (*Batch, error)
	RecentBatches(ctx context.Context, limit int) ([]*Batch, error)
	OutcomesForBatch(ctx context.Context, batchID string) ([]*Outcome, error)
	OutcomesForProject(ctx context.Context, projectPath string, limit int) ([]*Outcome, error)
}

// SQLRepository implements Repository using the SQLite database
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new history SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) Repository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// SaveBatch persists a finished batch record
func (r *SQLRepository) SaveBatch(ctx context.Context, batch *Batch) error {
	query, args, err := r.builder.
		Insert("sync_batches").
		Columns(
			"id",
			"trigger_kind",
			"total",
			"completed",
			"failed",
			"started_at",
			"finished_at",
		).
		Values(
			batch.ID,
			batch.Trigger,
			batch.Total,
			batch.Completed,
			batch.Failed,
			batch.StartedAt,
			batch.FinishedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting sync batch: %w", err)
	}

	r.logger.Debug("Saved sync batch", "id", batch.ID, "total", batch.Total, "failed", batch.Failed)
	return nil
}

// SaveOutcome persists one per-project result
func (r *SQLRepository) SaveOutcome(ctx context.Context, outcome *Outcome) error {
	query, args, err := r.builder.
		Insert("sync_outcomes").
		Columns(
			"id",
			"batch_id",
			"project_path",
			"project_name",
			"repo_name",
			"status",
			"files_committed",
			"created_repo",
			"error",
			"finished_at",
		).
		Values(
			outcome.ID,
			outcome.BatchID,
			outcome.ProjectPath,
			outcome.ProjectName,
			outcome.RepoName,
			outcome.Status,
			outcome.FilesCommitted,
			outcome.CreatedRepo,
			outcome.Error,
			outcome.FinishedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting sync outcome: %w", err)
	}

	return nil
}

// GetBatch retrieves a batch by its ID
func (r *SQLRepository) GetBatch(ctx context.Context, id string) (*Batch, error) {
	query, args, err := r.batchSelect().
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	batch, err := scanBatch(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("getting sync batch: %w", err)
	}
	return batch, nil
}

// RecentBatches returns the most recent batches, newest first
func (r *SQLRepository) RecentBatches(ctx context.Context, limit int) ([]*Batch, error) {
	if limit <= 0 {
		limit = 20
	}

	query, args, err := r.batchSelect().
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sync batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync batch: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// OutcomesForBatch returns every per-project result of one batch
func (r *SQLRepository) OutcomesForBatch(ctx context.Context, batchID string) ([]*Outcome, error) {
	query, args, err := r.outcomeSelect().
		Where(sq.Eq{"batch_id": batchID}).
		OrderBy("project_path ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	return r.queryOutcomes(ctx, query, args)
}

// OutcomesForProject returns the most recent results for one project,
// newest first
func (r *SQLRepository) OutcomesForProject(ctx context.Context, projectPath string, limit int) ([]*Outcome, error) {
	if limit <= 0 {
		limit = 20
	}

	query, args, err := r.outcomeSelect().
		Where(sq.Eq{"project_path": projectPath}).
		OrderBy("finished_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	return r.queryOutcomes(ctx, query, args)
}

func (r *SQLRepository) batchSelect() sq.SelectBuilder {
	return r.builder.
		Select(
			"id",
			"trigger_kind",
			"total",
			"completed",
			"failed",
			"started_at",
			"finished_at",
		).
		From("sync_batches")
}

func (r *SQLRepository) outcomeSelect() sq.SelectBuilder {
	return r.builder.
		Select(
			"id",
			"batch_id",
			"project_path",
			"project_name",
			"repo_name",
			"status",
			"files_committed",
			"created_repo",
			"error",
			"finished_at",
		).
		From("sync_outcomes")
}

func (r *SQLRepository) queryOutcomes(ctx context.Context, query string, args []interface{}) ([]*Outcome, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sync outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(
			&o.ID,
			&o.BatchID,
			&o.ProjectPath,
			&o.ProjectName,
			&o.RepoName,
			&o.Status,
			&o.FilesCommitted,
			&o.CreatedRepo,
			&o.Error,
			&o.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning sync outcome: %w", err)
		}
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(row rowScanner) (*Batch, error) {
	var b Batch
	if err := row.Scan(
		&b.ID,
		&b.Trigger,
		&b.Total,
		&b.Completed,
		&b.Failed,
		&b.StartedAt,
		&b.FinishedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}
