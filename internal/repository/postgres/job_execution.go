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

// JobExecutionRepository implements repository.JobExecutionRepository for
// PostgreSQL.
type JobExecutionRepository struct {
	db sqlExecutor
}

// NewJobExecutionRepository creates a new JobExecutionRepository.
func NewJobExecutionRepository(db sqlExecutor) *JobExecutionRepository {
	return &JobExecutionRepository{db: db}
}

const executionColumns = `
	id, job_id, request_type, start_at, end_at, http_status,
	adr_status_id, adr_status_description, adr_index_id,
	is_success, is_error, is_final, error_message, api_response, request_payload
`

func scanExecution(row interface{ Scan(...interface{}) error }) (*entity.JobExecution, error) {
	e := &entity.JobExecution{}
	err := row.Scan(
		&e.ID, &e.JobID, &e.RequestType, &e.StartAt, &e.EndAt, &e.HTTPStatus,
		&e.ADRStatusID, &e.ADRStatusDescription, &e.ADRIndexID,
		&e.IsSuccess, &e.IsError, &e.IsFinal, &e.ErrorMessage, &e.APIResponse, &e.RequestPayload,
	)
	return e, err
}

func (r *JobExecutionRepository) Create(ctx context.Context, e *entity.JobExecution) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO job_executions (` + executionColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.JobID, e.RequestType, e.StartAt, e.EndAt, e.HTTPStatus,
		e.ADRStatusID, e.ADRStatusDescription, e.ADRIndexID,
		e.IsSuccess, e.IsError, e.IsFinal, e.ErrorMessage, e.APIResponse, e.RequestPayload,
	)
	if err != nil {
		return fmt.Errorf("failed to create job execution: %w", err)
	}
	return nil
}

func (r *JobExecutionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.JobExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM job_executions WHERE id = $1`
	e, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "JobExecution", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job execution: %w", err)
	}
	return e, nil
}

// ListAbandoned selects executions left Running with no end_at before the
// grace cutoff — StartupRecovery's first reconciliation pass.
func (r *JobExecutionRepository) ListAbandoned(ctx context.Context, cutoff time.Time) ([]*entity.JobExecution, error) {
	query := `
		SELECT ` + executionColumns + ` FROM job_executions
		WHERE end_at IS NULL AND start_at < $1
	`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query abandoned executions: %w", err)
	}
	defer rows.Close()

	var out []*entity.JobExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *JobExecutionRepository) Update(ctx context.Context, e *entity.JobExecution) error {
	query := `
		UPDATE job_executions SET
			end_at=$1, http_status=$2, adr_status_id=$3, adr_status_description=$4, adr_index_id=$5,
			is_success=$6, is_error=$7, is_final=$8, error_message=$9, api_response=$10
		WHERE id = $11
	`
	result, err := r.db.ExecContext(ctx, query,
		e.EndAt, e.HTTPStatus, e.ADRStatusID, e.ADRStatusDescription, e.ADRIndexID,
		e.IsSuccess, e.IsError, e.IsFinal, e.ErrorMessage, e.APIResponse,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job execution: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{ResourceType: "JobExecution", ResourceID: e.ID.String()}
	}
	return nil
}

func (r *JobExecutionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_executions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count job executions: %w", err)
	}
	return count, nil
}
