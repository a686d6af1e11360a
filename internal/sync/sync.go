package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

const flushEvery = 5000

// ProgressFunc reports (current, total) once per source row streamed:
// current is the number of rows read so far and total the source's row
// count. AccountSync has no setup phase, so current is never negative.
type ProgressFunc func(current, total int)

// Result summarizes one AccountSync pass.
type Result struct {
	RowsProcessed   int
	ClientsUpserted int
	AccountsCreated int
	AccountsUpdated int
	AccountsDeleted int
	RulesCreated    int
	RulesSkipped    int
	RowErrors       int
}

// Syncer runs AccountSync (C3) against an external read-only source,
// reconciling Clients, Accounts, and AccountRules.
type Syncer struct {
	db     repository.Database
	source Source
	log    *zap.SugaredLogger
}

// NewSyncer builds a Syncer bound to db and source.
func NewSyncer(db repository.Database, source Source, log *zap.SugaredLogger) *Syncer {
	return &Syncer{db: db, source: source, log: log}
}

type naturalKey struct {
	vmAccountID     int64
	vmAccountNumber string
}

func naturalKeyOf(vmAccountID int64, vmAccountNumber string) naturalKey {
	return naturalKey{vmAccountID: vmAccountID, vmAccountNumber: vmAccountNumber}
}

type pendingAccount struct {
	account *entity.Account
	isNew   bool
}

// Run executes one full sync pass: client upsert, account reconciliation,
// soft-delete of vanished accounts, and rule sync, in that order.
// Per-row failures are caught, logged, and counted; the pass continues.
// Errors returned from Run are fatal (connection failures, context
// cancellation) and abort the remainder of the pass.
func (s *Syncer) Run(ctx context.Context, today time.Time, progress ProgressFunc) (*Result, error) {
	total, err := s.source.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count external rows: %w", err)
	}

	existing, err := s.loadExistingAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing accounts: %w", err)
	}

	clientCache := map[int32]*entity.Client{}
	periodTypes := map[naturalKey]entity.PeriodType{}
	processed := map[naturalKey]bool{}
	result := &Result{}

	var batch []pendingAccount
	n := 0
	streamErr := s.source.ForEachRow(ctx, func(row ExternalRow) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n++
		if progress != nil {
			progress(n, int(total))
		}

		key := naturalKeyOf(row.VMAccountID, row.VMAccountNumber)
		account, isNew, periodType, rowErr := s.reconcileRow(ctx, row, clientCache, existing[key], result, today)
		if rowErr != nil {
			result.RowErrors++
			s.log.Warnw("account sync row failed", "vm_account_id", row.VMAccountID, "error", rowErr)
			return nil
		}
		existing[key] = account
		periodTypes[key] = periodType
		processed[key] = true
		result.RowsProcessed++

		batch = append(batch, pendingAccount{account: account, isNew: isNew})
		if len(batch) >= flushEvery {
			if err := s.flushAccounts(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
		return nil
	})
	if streamErr != nil {
		return result, fmt.Errorf("account sync aborted: %w", streamErr)
	}
	if err := s.flushAccounts(ctx, batch); err != nil {
		return result, err
	}

	if err := s.softDeleteVanished(ctx, existing, processed, result); err != nil {
		return result, err
	}

	if err := s.syncRules(ctx, existing, processed, periodTypes, result); err != nil {
		return result, err
	}

	return result, nil
}

// loadExistingAccounts builds the in-memory key→account map step 3
// requires, preferring the most recently modified row on duplicate keys.
func (s *Syncer) loadExistingAccounts(ctx context.Context) (map[naturalKey]*entity.Account, error) {
	out := map[naturalKey]*entity.Account{}
	err := s.db.AccountRepository().ForEachNotDeleted(ctx, func(a *entity.Account) error {
		key := naturalKeyOf(a.VMAccountID, a.VMAccountNumber)
		if prev, ok := out[key]; ok {
			s.log.Warnw("duplicate account natural key, keeping most recently modified",
				"vm_account_id", a.VMAccountID, "vm_account_number", a.VMAccountNumber)
			if a.ModifiedAt.Before(prev.ModifiedAt) {
				return nil
			}
		}
		out[key] = a
		return nil
	})
	return out, err
}

// reconcileRow maps one external row to its internal Client and upserts
// the Account's identity and historical/derived fields, recomputing
// scheduling via BillingPeriodCalculator rather than trusting the row's
// own arithmetic. Scheduling mirror fields (next_run_at, period_type, …)
// are left untouched here; syncRules writes those via the Rule path.
func (s *Syncer) reconcileRow(ctx context.Context, row ExternalRow, clientCache map[int32]*entity.Client, existingAccount *entity.Account, result *Result, today time.Time) (*entity.Account, bool, entity.PeriodType, error) {
	client, err := s.resolveClient(ctx, row, clientCache, result)
	if err != nil {
		return nil, false, "", err
	}

	sched := computeSchedule(row.MedianInterInvoiceDays, row.LastInvoiceDate, row.InvoiceCount, today)

	isNew := existingAccount == nil
	account := existingAccount
	if isNew {
		account = &entity.Account{
			ID:              uuid.New(),
			VMAccountID:     row.VMAccountID,
			VMAccountNumber: row.VMAccountNumber,
		}
	}

	account.CredentialID = row.CredentialID
	if row.VendorCode != nil {
		account.VendorCode = *row.VendorCode
	}
	if client != nil {
		account.ClientID = client.ID
		account.ClientName = client.Name
	}
	if row.InterfaceAccountID != nil {
		account.InterfaceAccountID = *row.InterfaceAccountID
	}
	account.LastInvoiceAt = row.LastInvoiceDate
	account.InvoiceCount = row.InvoiceCount
	account.ExpectedNextAt = &sched.nextRun
	account.ExpectedRangeStartAt = &sched.rangeStart
	account.ExpectedRangeEndAt = &sched.rangeEnd
	days := sched.daysUntil
	account.DaysUntilNextRun = &days
	account.HistoricalBillingStatus = sched.billingStat
	account.NextRunStatus = sched.runStat

	if isNew {
		account.CreatedAt = entity.Now()
		account.CreatedBy = entity.SystemActor
		result.AccountsCreated++
	} else {
		result.AccountsUpdated++
	}
	account.ModifiedAt = entity.Now()
	account.ModifiedBy = entity.SystemActor

	return account, isNew, sched.cadence.PeriodType, nil
}

// resolveClient maps an external client id to the internal Client,
// upserting by external_client_id with an in-process cache to avoid
// redundant lookups across rows sharing a client.
func (s *Syncer) resolveClient(ctx context.Context, row ExternalRow, cache map[int32]*entity.Client, result *Result) (*entity.Client, error) {
	if row.ExternalClientID == nil {
		return nil, nil
	}
	extID := *row.ExternalClientID
	if c, ok := cache[extID]; ok {
		return c, nil
	}

	name := ""
	if row.ClientName != nil {
		name = *row.ClientName
	}

	client, err := s.db.ClientRepository().GetByExternalID(ctx, extID)
	if err != nil {
		if !repository.IsNotFound(err) {
			return nil, err
		}
		client = &entity.Client{
			ID:               uuid.New(),
			ExternalClientID: extID,
			Name:             name,
			Code:             deriveClientCode(name),
			IsActive:         true,
			Audit: entity.Audit{
				CreatedAt:  entity.Now(),
				CreatedBy:  entity.SystemActor,
				ModifiedAt: entity.Now(),
				ModifiedBy: entity.SystemActor,
			},
		}
		if err := s.db.ClientRepository().Create(ctx, client); err != nil {
			return nil, fmt.Errorf("failed to create client %d: %w", extID, err)
		}
		result.ClientsUpserted++
	} else if name != "" && client.Name != name {
		client.Name = name
		client.Code = deriveClientCode(name)
		client.ModifiedAt = entity.Now()
		client.ModifiedBy = entity.SystemActor
		if err := s.db.ClientRepository().Update(ctx, client); err != nil {
			return nil, fmt.Errorf("failed to update client %d: %w", extID, err)
		}
		result.ClientsUpserted++
	}

	cache[extID] = client
	return client, nil
}

// deriveClientCode derives a ≤50-char code from a client name.
func deriveClientCode(name string) string {
	code := strings.ToUpper(strings.Join(strings.Fields(name), "-"))
	if len(code) > 50 {
		code = code[:50]
	}
	return code
}

func (s *Syncer) flushAccounts(ctx context.Context, batch []pendingAccount) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin account flush transaction: %w", err)
	}
	for _, p := range batch {
		var err error
		if p.isNew {
			err = tx.AccountRepository().Create(ctx, p.account)
		} else {
			err = tx.AccountRepository().Update(ctx, p.account)
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to flush account %s: %w", p.account.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit account flush: %w", err)
	}
	return nil
}

// softDeleteVanished marks every previously-known account absent from this
// pass's processed set as deleted.
func (s *Syncer) softDeleteVanished(ctx context.Context, existing map[naturalKey]*entity.Account, processed map[naturalKey]bool, result *Result) error {
	var toDelete []*entity.Account
	for key, a := range existing {
		if processed[key] || a.IsDeleted {
			continue
		}
		a.IsDeleted = true
		a.ModifiedAt = entity.Now()
		a.ModifiedBy = entity.SystemActor
		toDelete = append(toDelete, a)
	}
	for start := 0; start < len(toDelete); start += flushEvery {
		end := start + flushEvery
		if end > len(toDelete) {
			end = len(toDelete)
		}
		tx, err := s.db.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin soft-delete transaction: %w", err)
		}
		for _, a := range toDelete[start:end] {
			if err := tx.AccountRepository().Update(ctx, a); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to soft-delete account %s: %w", a.ID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit soft-delete batch: %w", err)
		}
		result.AccountsDeleted += end - start
	}
	return nil
}

// syncRules reconciles AccountRule rows for every account processed this
// pass, respecting is_manually_overridden (step 6).
func (s *Syncer) syncRules(ctx context.Context, existing map[naturalKey]*entity.Account, processed map[naturalKey]bool, periodTypes map[naturalKey]entity.PeriodType, result *Result) error {
	for key, account := range existing {
		if !processed[key] {
			continue
		}
		periodType := periodTypes[key]

		rule, err := s.db.AccountRuleRepository().GetActiveByAccount(ctx, account.ID, entity.JobTypeDownloadInvoice)
		if err != nil && !repository.IsNotFound(err) {
			return fmt.Errorf("failed to load rule for account %s: %w", account.ID, err)
		}
		if err == nil {
			if rule.IsManuallyOverridden {
				result.RulesSkipped++
				continue
			}
			rule.PeriodType = periodType
			rule.NextRunAt = account.ExpectedNextAt
			rule.NextRangeStartAt = account.ExpectedRangeStartAt
			rule.NextRangeEndAt = account.ExpectedRangeEndAt
			rule.ModifiedAt = entity.Now()
			rule.ModifiedBy = entity.SystemActor
			if err := s.db.AccountRuleRepository().Update(ctx, rule); err != nil {
				return fmt.Errorf("failed to update rule for account %s: %w", account.ID, err)
			}
		} else {
			rule = &entity.AccountRule{
				ID:                   uuid.New(),
				AccountID:            account.ID,
				JobTypeID:            entity.JobTypeDownloadInvoice,
				PeriodType:           periodType,
				NextRunAt:            account.ExpectedNextAt,
				NextRangeStartAt:     account.ExpectedRangeStartAt,
				NextRangeEndAt:       account.ExpectedRangeEndAt,
				IsEnabled:            true,
				IsManuallyOverridden: false,
				Audit: entity.Audit{
					CreatedAt:  entity.Now(),
					CreatedBy:  entity.SystemActor,
					ModifiedAt: entity.Now(),
					ModifiedBy: entity.SystemActor,
				},
			}
			if err := s.db.AccountRuleRepository().Create(ctx, rule); err != nil {
				return fmt.Errorf("failed to create rule for account %s: %w", account.ID, err)
			}
			result.RulesCreated++
		}

		account.NextRunAt = rule.NextRunAt
		account.NextRangeStartAt = rule.NextRangeStartAt
		account.NextRangeEndAt = rule.NextRangeEndAt
		account.PeriodType = rule.PeriodType
		if err := s.db.AccountRepository().Update(ctx, account); err != nil {
			return fmt.Errorf("failed to mirror rule onto account %s: %w", account.ID, err)
		}
	}
	return nil
}
