package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// Database composes every PostgreSQL repository behind repository.Database,
// the wiring point cmd/server passes to the orchestrator, sync, and stale
// packages.
type Database struct {
	db *DB

	clients       *ClientRepository
	accounts      *AccountRepository
	rules         *AccountRuleRepository
	jobs          *JobRepository
	executions    *JobExecutionRepository
	runs          *OrchestrationRunRepository
	blacklist     *BlacklistRepository
	configuration *ConfigurationRepository
}

// NewDatabase wires a repository.Database on top of an open PostgreSQL
// connection.
func NewDatabase(db *DB) *Database {
	return &Database{
		db:            db,
		clients:       NewClientRepository(db.DB),
		accounts:      NewAccountRepository(db.DB),
		rules:         NewAccountRuleRepository(db.DB),
		jobs:          NewJobRepository(db.DB),
		executions:    NewJobExecutionRepository(db.DB),
		runs:          NewOrchestrationRunRepository(db.DB),
		blacklist:     NewBlacklistRepository(db.DB),
		configuration: NewConfigurationRepository(db.DB),
	}
}

func (d *Database) ClientRepository() repository.ClientRepository             { return d.clients }
func (d *Database) AccountRepository() repository.AccountRepository          { return d.accounts }
func (d *Database) AccountRuleRepository() repository.AccountRuleRepository  { return d.rules }
func (d *Database) JobRepository() repository.JobRepository                  { return d.jobs }
func (d *Database) JobExecutionRepository() repository.JobExecutionRepository {
	return d.executions
}
func (d *Database) OrchestrationRunRepository() repository.OrchestrationRunRepository {
	return d.runs
}
func (d *Database) BlacklistRepository() repository.BlacklistRepository { return d.blacklist }
func (d *Database) ConfigurationRepository() repository.ConfigurationRepository {
	return d.configuration
}

func (d *Database) Close() error                          { return d.db.Close() }
func (d *Database) Health(ctx context.Context) error       { return d.db.Health(ctx) }

// BeginTx starts a PostgreSQL transaction. The returned Transaction exposes
// the same repository accessors bound to the tx instead of the pool, so a
// caller can compose multi-repository writes atomically.
func (d *Database) BeginTx(ctx context.Context) (repository.Transaction, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return newPgTransaction(tx), nil
}

// pgTransaction adapts a *sql.Tx into repository.Transaction by constructing
// each repository against the tx's *sql.DB-compatible executor.
type pgTransaction struct {
	tx *sql.Tx

	clients       *ClientRepository
	accounts      *AccountRepository
	rules         *AccountRuleRepository
	jobs          *JobRepository
	executions    *JobExecutionRepository
	runs          *OrchestrationRunRepository
	blacklist     *BlacklistRepository
	configuration *ConfigurationRepository
}

func newPgTransaction(tx *sql.Tx) *pgTransaction {
	// *sql.Tx satisfies sqlExecutor directly, so each repository binds to
	// the in-flight transaction with no adapter type needed.
	return &pgTransaction{
		tx:            tx,
		clients:       NewClientRepository(tx),
		accounts:      NewAccountRepository(tx),
		rules:         NewAccountRuleRepository(tx),
		jobs:          NewJobRepository(tx),
		executions:    NewJobExecutionRepository(tx),
		runs:          NewOrchestrationRunRepository(tx),
		blacklist:     NewBlacklistRepository(tx),
		configuration: NewConfigurationRepository(tx),
	}
}

func (t *pgTransaction) Commit() error   { return t.tx.Commit() }
func (t *pgTransaction) Rollback() error { return t.tx.Rollback() }

func (t *pgTransaction) ClientRepository() repository.ClientRepository            { return t.clients }
func (t *pgTransaction) AccountRepository() repository.AccountRepository         { return t.accounts }
func (t *pgTransaction) AccountRuleRepository() repository.AccountRuleRepository { return t.rules }
func (t *pgTransaction) JobRepository() repository.JobRepository                 { return t.jobs }
func (t *pgTransaction) JobExecutionRepository() repository.JobExecutionRepository {
	return t.executions
}
func (t *pgTransaction) OrchestrationRunRepository() repository.OrchestrationRunRepository {
	return t.runs
}
func (t *pgTransaction) BlacklistRepository() repository.BlacklistRepository { return t.blacklist }
func (t *pgTransaction) ConfigurationRepository() repository.ConfigurationRepository {
	return t.configuration
}
