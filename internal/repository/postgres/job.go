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

// JobRepository implements repository.JobRepository for PostgreSQL.
type JobRepository struct {
	db sqlExecutor
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db sqlExecutor) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
	id, account_id, account_rule_id, credential_id, period_type,
	billing_period_start_at, billing_period_end_at,
	next_run_at, next_range_start_at, next_range_end_at, status,
	adr_status_id, adr_status_description, adr_index_id, is_missing, retry_count,
	credential_verified_at, scraping_completed_at, error_message,
	last_status_check_response, last_status_check_at,
	created_at, created_by, modified_at, modified_by, is_deleted
`

func scanJob(row interface{ Scan(...interface{}) error }) (*entity.Job, error) {
	j := &entity.Job{}
	err := row.Scan(
		&j.ID, &j.AccountID, &j.AccountRuleID, &j.CredentialID, (*string)(&j.PeriodType),
		&j.BillingPeriodStartAt, &j.BillingPeriodEndAt,
		&j.NextRunAt, &j.NextRangeStartAt, &j.NextRangeEndAt, (*string)(&j.Status),
		&j.ADRStatusID, &j.ADRStatusDescription, &j.ADRIndexID, &j.IsMissing, &j.RetryCount,
		&j.CredentialVerifiedAt, &j.ScrapingCompletedAt, &j.ErrorMessage,
		&j.LastStatusCheckResponse, &j.LastStatusCheckAt,
		&j.CreatedAt, &j.CreatedBy, &j.ModifiedAt, &j.ModifiedBy, &j.IsDeleted,
	)
	return j, err
}

func (r *JobRepository) Create(ctx context.Context, j *entity.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
	`
	_, err := r.db.ExecContext(ctx, query,
		j.ID, j.AccountID, j.AccountRuleID, j.CredentialID, string(j.PeriodType),
		j.BillingPeriodStartAt, j.BillingPeriodEndAt,
		j.NextRunAt, j.NextRangeStartAt, j.NextRangeEndAt, string(j.Status),
		j.ADRStatusID, j.ADRStatusDescription, j.ADRIndexID, j.IsMissing, j.RetryCount,
		j.CredentialVerifiedAt, j.ScrapingCompletedAt, j.ErrorMessage,
		j.LastStatusCheckResponse, j.LastStatusCheckAt,
		j.CreatedAt, j.CreatedBy, j.ModifiedAt, j.ModifiedBy, j.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	j, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Job", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ExistsForBillingPeriod implements the precheck that enforces the
// unique(account_id, billing_period_start_at, billing_period_end_at)
// invariant before CreateJobs inserts a new row.
func (r *JobRepository) ExistsForBillingPeriod(ctx context.Context, accountID uuid.UUID, periodStart, periodEnd time.Time) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM jobs
			WHERE account_id = $1 AND billing_period_start_at = $2 AND billing_period_end_at = $3
		)
	`
	err := r.db.QueryRowContext(ctx, query, accountID, periodStart, periodEnd).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check job existence: %w", err)
	}
	return exists, nil
}

func (r *JobRepository) ListByStatus(ctx context.Context, statuses []entity.JobStatus) ([]*entity.Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = ANY($1) ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, strs)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs by status: %w", err)
	}
	defer rows.Close()

	var out []*entity.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListStalePending selects jobs with status in {Pending,
// CredentialCheckInProgress} whose window end has passed, within a
// lookback bound so the query doesn't scan the entire table's history.
func (r *JobRepository) ListStalePending(ctx context.Context, today time.Time, lookbackDays int) ([]*entity.Job, error) {
	cutoff := today.AddDate(0, 0, -lookbackDays)
	query := `
		SELECT ` + jobColumns + ` FROM jobs
		WHERE status IN ('Pending', 'CredentialCheckInProgress')
		  AND next_range_end_at < $1 AND next_range_end_at >= $2
		ORDER BY next_range_end_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, today, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale pending jobs: %w", err)
	}
	defer rows.Close()

	var out []*entity.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *JobRepository) Update(ctx context.Context, j *entity.Job) error {
	query := `
		UPDATE jobs SET
			status=$1, adr_status_id=$2, adr_status_description=$3, adr_index_id=$4,
			is_missing=$5, retry_count=$6, credential_verified_at=$7, scraping_completed_at=$8,
			error_message=$9, last_status_check_response=$10, last_status_check_at=$11,
			next_run_at=$12, next_range_start_at=$13, next_range_end_at=$14,
			modified_at=$15, modified_by=$16, is_deleted=$17
		WHERE id = $18
	`
	result, err := r.db.ExecContext(ctx, query,
		string(j.Status), j.ADRStatusID, j.ADRStatusDescription, j.ADRIndexID,
		j.IsMissing, j.RetryCount, j.CredentialVerifiedAt, j.ScrapingCompletedAt,
		j.ErrorMessage, j.LastStatusCheckResponse, j.LastStatusCheckAt,
		j.NextRunAt, j.NextRangeStartAt, j.NextRangeEndAt,
		j.ModifiedAt, j.ModifiedBy, j.IsDeleted,
		j.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{ResourceType: "Job", ResourceID: j.ID.String()}
	}
	return nil
}

func (r *JobRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}
