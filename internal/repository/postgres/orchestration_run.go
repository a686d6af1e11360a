package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// OrchestrationRunRepository implements repository.OrchestrationRunRepository
// for PostgreSQL.
type OrchestrationRunRepository struct {
	db sqlExecutor
}

// NewOrchestrationRunRepository creates a new OrchestrationRunRepository.
func NewOrchestrationRunRepository(db sqlExecutor) *OrchestrationRunRepository {
	return &OrchestrationRunRepository{db: db}
}

const runColumns = `
	id, request_id, requested_by, requested_at, started_at, completed_at, status, error_message,
	jobs_created, credentials_verified, credentials_failed, scrapes_requested,
	scrapes_failed, status_checks, jobs_completed
`

func scanRun(row interface{ Scan(...interface{}) error }) (*entity.OrchestrationRun, error) {
	run := &entity.OrchestrationRun{}
	err := row.Scan(
		&run.ID, &run.RequestID, &run.RequestedBy, &run.RequestedAt, &run.StartedAt, &run.CompletedAt,
		(*string)(&run.Status), &run.ErrorMessage,
		&run.Counters.JobsCreated, &run.Counters.CredentialsVerified, &run.Counters.CredentialsFailed,
		&run.Counters.ScrapesRequested, &run.Counters.ScrapesFailed, &run.Counters.StatusChecks,
		&run.Counters.JobsCompleted,
	)
	return run, err
}

func (r *OrchestrationRunRepository) Create(ctx context.Context, run *entity.OrchestrationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	query := `
		INSERT INTO orchestration_runs (` + runColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.RequestID, run.RequestedBy, run.RequestedAt, run.StartedAt, run.CompletedAt,
		string(run.Status), run.ErrorMessage,
		run.Counters.JobsCreated, run.Counters.CredentialsVerified, run.Counters.CredentialsFailed,
		run.Counters.ScrapesRequested, run.Counters.ScrapesFailed, run.Counters.StatusChecks,
		run.Counters.JobsCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to create orchestration run: %w", err)
	}
	return nil
}

func (r *OrchestrationRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.OrchestrationRun, error) {
	query := `SELECT ` + runColumns + ` FROM orchestration_runs WHERE id = $1`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "OrchestrationRun", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get orchestration run: %w", err)
	}
	return run, nil
}

// ListRunningStartedBefore selects runs left Running that started before
// cutoff — StartupRecovery's second reconciliation pass.
func (r *OrchestrationRunRepository) ListRunningStartedBefore(ctx context.Context, cutoff time.Time) ([]*entity.OrchestrationRun, error) {
	query := `
		SELECT ` + runColumns + ` FROM orchestration_runs
		WHERE status = 'Running' AND started_at < $1 AND completed_at IS NULL
	`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query interrupted runs: %w", err)
	}
	defer rows.Close()

	var out []*entity.OrchestrationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan orchestration run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// HasRunningStartedAfter guards StartupRecovery against closing a
// legitimate in-process run that started after this process came up.
func (r *OrchestrationRunRepository) HasRunningStartedAfter(ctx context.Context, after time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM orchestration_runs WHERE status = 'Running' AND started_at > $1)`
	err := r.db.QueryRowContext(ctx, query, after).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for live runs: %w", err)
	}
	return exists, nil
}

func (r *OrchestrationRunRepository) Update(ctx context.Context, run *entity.OrchestrationRun) error {
	query := `
		UPDATE orchestration_runs SET
			started_at=$1, completed_at=$2, status=$3, error_message=$4,
			jobs_created=$5, credentials_verified=$6, credentials_failed=$7,
			scrapes_requested=$8, scrapes_failed=$9, status_checks=$10, jobs_completed=$11
		WHERE id = $12
	`
	result, err := r.db.ExecContext(ctx, query,
		run.StartedAt, run.CompletedAt, string(run.Status), run.ErrorMessage,
		run.Counters.JobsCreated, run.Counters.CredentialsVerified, run.Counters.CredentialsFailed,
		run.Counters.ScrapesRequested, run.Counters.ScrapesFailed, run.Counters.StatusChecks,
		run.Counters.JobsCompleted,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update orchestration run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{ResourceType: "OrchestrationRun", ResourceID: run.ID.String()}
	}
	return nil
}

func (r *OrchestrationRunRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orchestration_runs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orchestration runs: %w", err)
	}
	return count, nil
}
