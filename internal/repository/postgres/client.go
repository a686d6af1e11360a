package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// ClientRepository implements repository.ClientRepository for PostgreSQL.
type ClientRepository struct {
	db sqlExecutor
}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository(db sqlExecutor) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, c *entity.Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	query := `
		INSERT INTO clients (
			id, external_client_id, name, code, is_active, last_synced_at,
			created_at, created_by, modified_at, modified_by, is_deleted
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.ExternalClientID, c.Name, c.Code, c.IsActive, c.LastSyncedAt,
		c.CreatedAt, c.CreatedBy, c.ModifiedAt, c.ModifiedBy, c.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Client, error) {
	c := &entity.Client{}
	query := `
		SELECT id, external_client_id, name, code, is_active, last_synced_at,
		       created_at, created_by, modified_at, modified_by, is_deleted
		FROM clients WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.ExternalClientID, &c.Name, &c.Code, &c.IsActive, &c.LastSyncedAt,
		&c.CreatedAt, &c.CreatedBy, &c.ModifiedAt, &c.ModifiedBy, &c.IsDeleted,
	)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Client", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

func (r *ClientRepository) GetByExternalID(ctx context.Context, externalClientID int32) (*entity.Client, error) {
	c := &entity.Client{}
	query := `
		SELECT id, external_client_id, name, code, is_active, last_synced_at,
		       created_at, created_by, modified_at, modified_by, is_deleted
		FROM clients WHERE external_client_id = $1
	`
	err := r.db.QueryRowContext(ctx, query, externalClientID).Scan(
		&c.ID, &c.ExternalClientID, &c.Name, &c.Code, &c.IsActive, &c.LastSyncedAt,
		&c.CreatedAt, &c.CreatedBy, &c.ModifiedAt, &c.ModifiedBy, &c.IsDeleted,
	)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Client", ResourceID: fmt.Sprintf("%d", externalClientID)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client by external id: %w", err)
	}
	return c, nil
}

func (r *ClientRepository) Update(ctx context.Context, c *entity.Client) error {
	query := `
		UPDATE clients
		SET name = $1, code = $2, is_active = $3, last_synced_at = $4,
		    modified_at = $5, modified_by = $6, is_deleted = $7
		WHERE id = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		c.Name, c.Code, c.IsActive, c.LastSyncedAt, c.ModifiedAt, c.ModifiedBy, c.IsDeleted, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{ResourceType: "Client", ResourceID: c.ID.String()}
	}
	return nil
}

func (r *ClientRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return count, nil
}
