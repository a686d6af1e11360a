package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// AccountRepository implements repository.AccountRepository for PostgreSQL.
type AccountRepository struct {
	db sqlExecutor
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db sqlExecutor) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
	id, vm_account_id, vm_account_number, interface_account_id, client_id, client_name,
	credential_id, vendor_code, primary_vendor_code, master_vendor_code,
	median_days, invoice_count, last_invoice_at, expected_next_at,
	expected_range_start_at, expected_range_end_at, days_until_next_run,
	next_run_status, historical_billing_status, last_successful_download_date,
	next_run_at, next_range_start_at, next_range_end_at, period_type,
	created_at, created_by, modified_at, modified_by, is_deleted
`

func scanAccount(row interface{ Scan(...interface{}) error }) (*entity.Account, error) {
	a := &entity.Account{}
	err := row.Scan(
		&a.ID, &a.VMAccountID, &a.VMAccountNumber, &a.InterfaceAccountID, &a.ClientID, &a.ClientName,
		&a.CredentialID, &a.VendorCode, &a.PrimaryVendorCode, &a.MasterVendorCode,
		&a.MedianDays, &a.InvoiceCount, &a.LastInvoiceAt, &a.ExpectedNextAt,
		&a.ExpectedRangeStartAt, &a.ExpectedRangeEndAt, &a.DaysUntilNextRun,
		(*string)(&a.NextRunStatus), (*string)(&a.HistoricalBillingStatus), &a.LastSuccessfulDownloadAt,
		&a.NextRunAt, &a.NextRangeStartAt, &a.NextRangeEndAt, (*string)(&a.PeriodType),
		&a.CreatedAt, &a.CreatedBy, &a.ModifiedAt, &a.ModifiedBy, &a.IsDeleted,
	)
	return a, err
}

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.VMAccountID, a.VMAccountNumber, a.InterfaceAccountID, a.ClientID, a.ClientName,
		a.CredentialID, a.VendorCode, a.PrimaryVendorCode, a.MasterVendorCode,
		a.MedianDays, a.InvoiceCount, a.LastInvoiceAt, a.ExpectedNextAt,
		a.ExpectedRangeStartAt, a.ExpectedRangeEndAt, a.DaysUntilNextRun,
		string(a.NextRunStatus), string(a.HistoricalBillingStatus), a.LastSuccessfulDownloadAt,
		a.NextRunAt, a.NextRangeStartAt, a.NextRangeEndAt, string(a.PeriodType),
		a.CreatedAt, a.CreatedBy, a.ModifiedAt, a.ModifiedBy, a.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Account", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetByNaturalKey(ctx context.Context, vmAccountID int64, vmAccountNumber string) (*entity.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE vm_account_id = $1 AND vm_account_number = $2`
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, vmAccountID, vmAccountNumber))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Account", ResourceID: vmAccountNumber}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by natural key: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) ListNotDeleted(ctx context.Context) ([]*entity.Account, error) {
	var out []*entity.Account
	err := r.ForEachNotDeleted(ctx, func(a *entity.Account) error {
		out = append(out, a)
		return nil
	})
	return out, err
}

// ForEachNotDeleted streams non-deleted accounts row by row rather than
// buffering the full ~170K-row population, per the streaming-not-buffering
// design note.
func (r *AccountRepository) ForEachNotDeleted(ctx context.Context, fn func(*entity.Account) error) error {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE is_deleted = false`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return fmt.Errorf("failed to scan account: %w", err)
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *AccountRepository) ListDue(ctx context.Context, statuses []entity.NextRunStatus) ([]*entity.Account, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE is_deleted = false AND next_run_status = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, strs)
	if err != nil {
		return nil, fmt.Errorf("failed to query due accounts: %w", err)
	}
	defer rows.Close()

	var out []*entity.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AccountRepository) Update(ctx context.Context, a *entity.Account) error {
	query := `
		UPDATE accounts SET
			interface_account_id=$1, client_id=$2, client_name=$3, credential_id=$4,
			vendor_code=$5, primary_vendor_code=$6, master_vendor_code=$7,
			median_days=$8, invoice_count=$9, last_invoice_at=$10, expected_next_at=$11,
			expected_range_start_at=$12, expected_range_end_at=$13, days_until_next_run=$14,
			next_run_status=$15, historical_billing_status=$16, last_successful_download_date=$17,
			next_run_at=$18, next_range_start_at=$19, next_range_end_at=$20, period_type=$21,
			modified_at=$22, modified_by=$23, is_deleted=$24
		WHERE id = $25
	`
	result, err := r.db.ExecContext(ctx, query,
		a.InterfaceAccountID, a.ClientID, a.ClientName, a.CredentialID,
		a.VendorCode, a.PrimaryVendorCode, a.MasterVendorCode,
		a.MedianDays, a.InvoiceCount, a.LastInvoiceAt, a.ExpectedNextAt,
		a.ExpectedRangeStartAt, a.ExpectedRangeEndAt, a.DaysUntilNextRun,
		string(a.NextRunStatus), string(a.HistoricalBillingStatus), a.LastSuccessfulDownloadAt,
		a.NextRunAt, a.NextRangeStartAt, a.NextRangeEndAt, string(a.PeriodType),
		a.ModifiedAt, a.ModifiedBy, a.IsDeleted,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{ResourceType: "Account", ResourceID: a.ID.String()}
	}
	return nil
}

func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE is_deleted = false`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}
