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

// BlacklistRepository implements repository.BlacklistRepository for
// PostgreSQL.
type BlacklistRepository struct {
	db sqlExecutor
}

// NewBlacklistRepository creates a new BlacklistRepository.
func NewBlacklistRepository(db sqlExecutor) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

const blacklistColumns = `
	id, primary_vendor_code, master_vendor_code, vm_account_id, vm_account_number, credential_id,
	exclusion_type, effective_start, effective_end, is_active,
	created_at, created_by, modified_at, modified_by, is_deleted
`

func scanBlacklistEntry(row interface{ Scan(...interface{}) error }) (*entity.BlacklistEntry, error) {
	e := &entity.BlacklistEntry{}
	err := row.Scan(
		&e.ID, &e.PrimaryVendorCode, &e.MasterVendorCode, &e.VMAccountID, &e.VMAccountNumber, &e.CredentialID,
		(*string)(&e.ExclusionType), &e.EffectiveStart, &e.EffectiveEnd, &e.IsActive,
		&e.CreatedAt, &e.CreatedBy, &e.ModifiedAt, &e.ModifiedBy, &e.IsDeleted,
	)
	return e, err
}

func (r *BlacklistRepository) Create(ctx context.Context, e *entity.BlacklistEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO blacklist_entries (` + blacklistColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.PrimaryVendorCode, e.MasterVendorCode, e.VMAccountID, e.VMAccountNumber, e.CredentialID,
		string(e.ExclusionType), e.EffectiveStart, e.EffectiveEnd, e.IsActive,
		e.CreatedAt, e.CreatedBy, e.ModifiedAt, e.ModifiedBy, e.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("failed to create blacklist entry: %w", err)
	}
	return nil
}

func (r *BlacklistRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.BlacklistEntry, error) {
	query := `SELECT ` + blacklistColumns + ` FROM blacklist_entries WHERE id = $1`
	e, err := scanBlacklistEntry(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "BlacklistEntry", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blacklist entry: %w", err)
	}
	return e, nil
}

// ListActive loads every entry active today, for C2's once-per-run
// in-memory filter load.
func (r *BlacklistRepository) ListActive(ctx context.Context, today time.Time) ([]*entity.BlacklistEntry, error) {
	query := `
		SELECT ` + blacklistColumns + ` FROM blacklist_entries
		WHERE is_active = true AND is_deleted = false
		  AND (effective_start IS NULL OR effective_start <= $1)
		  AND (effective_end IS NULL OR effective_end >= $1)
	`
	rows, err := r.db.QueryContext(ctx, query, today)
	if err != nil {
		return nil, fmt.Errorf("failed to query active blacklist entries: %w", err)
	}
	defer rows.Close()

	var out []*entity.BlacklistEntry
	for rows.Next() {
		e, err := scanBlacklistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *BlacklistRepository) Update(ctx context.Context, e *entity.BlacklistEntry) error {
	query := `
		UPDATE blacklist_entries SET
			primary_vendor_code=$1, master_vendor_code=$2, vm_account_id=$3, vm_account_number=$4,
			credential_id=$5, exclusion_type=$6, effective_start=$7, effective_end=$8, is_active=$9,
			modified_at=$10, modified_by=$11, is_deleted=$12
		WHERE id = $13
	`
	result, err := r.db.ExecContext(ctx, query,
		e.PrimaryVendorCode, e.MasterVendorCode, e.VMAccountID, e.VMAccountNumber,
		e.CredentialID, string(e.ExclusionType), e.EffectiveStart, e.EffectiveEnd, e.IsActive,
		e.ModifiedAt, e.ModifiedBy, e.IsDeleted,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update blacklist entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{ResourceType: "BlacklistEntry", ResourceID: e.ID.String()}
	}
	return nil
}

func (r *BlacklistRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blacklist_entries WHERE is_deleted = false`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count blacklist entries: %w", err)
	}
	return count, nil
}
