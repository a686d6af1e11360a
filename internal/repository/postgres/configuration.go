package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// ConfigurationRepository implements repository.ConfigurationRepository for
// PostgreSQL. Configuration is a single row; callers fall back to
// internal/config's YAML defaults when Get returns a NotFoundError.
type ConfigurationRepository struct {
	db sqlExecutor
}

// NewConfigurationRepository creates a new ConfigurationRepository.
func NewConfigurationRepository(db sqlExecutor) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

const configurationColumns = `
	id, batch_size, max_parallel_requests, daily_status_check_delay_days,
	scrape_retry_days, credential_check_lead_days, max_retries,
	test_mode_enabled, test_mode_max_scraping_jobs, test_mode_max_rebill_jobs,
	enable_detailed_logging, is_orchestration_enabled, grace_period_minutes, startup_delay_seconds,
	created_at, created_by, modified_at, modified_by, is_deleted
`

func scanConfiguration(row interface{ Scan(...interface{}) error }) (*entity.Configuration, error) {
	c := &entity.Configuration{}
	err := row.Scan(
		&c.ID, &c.BatchSize, &c.MaxParallelRequests, &c.DailyStatusCheckDelayDays,
		&c.ScrapeRetryDays, &c.CredentialCheckLeadDays, &c.MaxRetries,
		&c.TestModeEnabled, &c.TestModeMaxScrapingJobs, &c.TestModeMaxRebillJobs,
		&c.EnableDetailedLogging, &c.IsOrchestrationEnabled, &c.GracePeriodMinutes, &c.StartupDelaySeconds,
		&c.CreatedAt, &c.CreatedBy, &c.ModifiedAt, &c.ModifiedBy, &c.IsDeleted,
	)
	return c, err
}

// Get returns the single configuration row. It returns a NotFoundError when
// no row has ever been written, signaling the caller to fall back to its
// YAML-backed defaults.
func (r *ConfigurationRepository) Get(ctx context.Context) (*entity.Configuration, error) {
	query := `SELECT ` + configurationColumns + ` FROM configuration WHERE is_deleted = false ORDER BY created_at ASC LIMIT 1`
	c, err := scanConfiguration(r.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Configuration", ResourceID: "singleton"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}
	return c, nil
}

// Upsert writes the singleton configuration row, inserting it on first use
// and updating every field thereafter.
func (r *ConfigurationRepository) Upsert(ctx context.Context, c *entity.Configuration) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `
		INSERT INTO configuration (` + configurationColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
			batch_size = EXCLUDED.batch_size,
			max_parallel_requests = EXCLUDED.max_parallel_requests,
			daily_status_check_delay_days = EXCLUDED.daily_status_check_delay_days,
			scrape_retry_days = EXCLUDED.scrape_retry_days,
			credential_check_lead_days = EXCLUDED.credential_check_lead_days,
			max_retries = EXCLUDED.max_retries,
			test_mode_enabled = EXCLUDED.test_mode_enabled,
			test_mode_max_scraping_jobs = EXCLUDED.test_mode_max_scraping_jobs,
			test_mode_max_rebill_jobs = EXCLUDED.test_mode_max_rebill_jobs,
			enable_detailed_logging = EXCLUDED.enable_detailed_logging,
			is_orchestration_enabled = EXCLUDED.is_orchestration_enabled,
			grace_period_minutes = EXCLUDED.grace_period_minutes,
			startup_delay_seconds = EXCLUDED.startup_delay_seconds,
			modified_at = EXCLUDED.modified_at,
			modified_by = EXCLUDED.modified_by,
			is_deleted = EXCLUDED.is_deleted
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.BatchSize, c.MaxParallelRequests, c.DailyStatusCheckDelayDays,
		c.ScrapeRetryDays, c.CredentialCheckLeadDays, c.MaxRetries,
		c.TestModeEnabled, c.TestModeMaxScrapingJobs, c.TestModeMaxRebillJobs,
		c.EnableDetailedLogging, c.IsOrchestrationEnabled, c.GracePeriodMinutes, c.StartupDelaySeconds,
		c.CreatedAt, c.CreatedBy, c.ModifiedAt, c.ModifiedBy, c.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert configuration: %w", err)
	}
	return nil
}
