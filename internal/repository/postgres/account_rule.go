package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// AccountRuleRepository implements repository.AccountRuleRepository for
// PostgreSQL.
type AccountRuleRepository struct {
	db sqlExecutor
}

// NewAccountRuleRepository creates a new AccountRuleRepository.
func NewAccountRuleRepository(db sqlExecutor) *AccountRuleRepository {
	return &AccountRuleRepository{db: db}
}

const ruleColumns = `
	id, account_id, job_type_id, period_type, period_days,
	next_run_at, next_range_start_at, next_range_end_at,
	window_days_before, window_days_after, is_enabled, is_manually_overridden,
	created_at, created_by, modified_at, modified_by, is_deleted
`

func scanRule(row interface{ Scan(...interface{}) error }) (*entity.AccountRule, error) {
	r := &entity.AccountRule{}
	err := row.Scan(
		&r.ID, &r.AccountID, &r.JobTypeID, (*string)(&r.PeriodType), &r.PeriodDays,
		&r.NextRunAt, &r.NextRangeStartAt, &r.NextRangeEndAt,
		&r.WindowDaysBefore, &r.WindowDaysAfter, &r.IsEnabled, &r.IsManuallyOverridden,
		&r.CreatedAt, &r.CreatedBy, &r.ModifiedAt, &r.ModifiedBy, &r.IsDeleted,
	)
	return r, err
}

func (repo *AccountRuleRepository) Create(ctx context.Context, rule *entity.AccountRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	query := `
		INSERT INTO account_rules (` + ruleColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`
	_, err := repo.db.ExecContext(ctx, query,
		rule.ID, rule.AccountID, rule.JobTypeID, string(rule.PeriodType), rule.PeriodDays,
		rule.NextRunAt, rule.NextRangeStartAt, rule.NextRangeEndAt,
		rule.WindowDaysBefore, rule.WindowDaysAfter, rule.IsEnabled, rule.IsManuallyOverridden,
		rule.CreatedAt, rule.CreatedBy, rule.ModifiedAt, rule.ModifiedBy, rule.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("failed to create account rule: %w", err)
	}
	return nil
}

func (repo *AccountRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.AccountRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM account_rules WHERE id = $1`
	rule, err := scanRule(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "AccountRule", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account rule: %w", err)
	}
	return rule, nil
}

func (repo *AccountRuleRepository) GetActiveByAccount(ctx context.Context, accountID uuid.UUID, jobTypeID int32) (*entity.AccountRule, error) {
	query := `
		SELECT ` + ruleColumns + ` FROM account_rules
		WHERE account_id = $1 AND job_type_id = $2 AND is_enabled = true AND is_deleted = false
		LIMIT 1
	`
	rule, err := scanRule(repo.db.QueryRowContext(ctx, query, accountID, jobTypeID))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "AccountRule", ResourceID: accountID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active account rule: %w", err)
	}
	return rule, nil
}

func (repo *AccountRuleRepository) Update(ctx context.Context, rule *entity.AccountRule) error {
	query := `
		UPDATE account_rules SET
			period_type=$1, period_days=$2, next_run_at=$3, next_range_start_at=$4,
			next_range_end_at=$5, window_days_before=$6, window_days_after=$7,
			is_enabled=$8, is_manually_overridden=$9, modified_at=$10, modified_by=$11, is_deleted=$12
		WHERE id = $13
	`
	result, err := repo.db.ExecContext(ctx, query,
		string(rule.PeriodType), rule.PeriodDays, rule.NextRunAt, rule.NextRangeStartAt,
		rule.NextRangeEndAt, rule.WindowDaysBefore, rule.WindowDaysAfter,
		rule.IsEnabled, rule.IsManuallyOverridden, rule.ModifiedAt, rule.ModifiedBy, rule.IsDeleted,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{ResourceType: "AccountRule", ResourceID: rule.ID.String()}
	}
	return nil
}

func (repo *AccountRuleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM account_rules WHERE is_deleted = false`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count account rules: %w", err)
	}
	return count, nil
}
