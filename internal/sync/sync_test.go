package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository/memory"
)

type fakeSource struct {
	rows []ExternalRow
	err  error
}

func (f *fakeSource) Count(ctx context.Context) (int64, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeSource) ForEachRow(ctx context.Context, fn func(ExternalRow) error) error {
	if f.err != nil {
		return f.err
	}
	for _, r := range f.rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func noopProgress(current, total int) {}

func strPtr(s string) *string { return &s }
func i32Ptr(i int32) *int32   { return &i }

func TestSyncer_CreatesNewAccountAndRule(t *testing.T) {
	db := memory.NewDatabase()
	last := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: []ExternalRow{
		{
			VMAccountID:             100,
			VMAccountNumber:         "ACC-100",
			CredentialID:            7,
			ExternalClientID:        i32Ptr(1),
			ClientName:              strPtr("Acme Hospital"),
			LastInvoiceDate:         &last,
			InvoiceCount:            4,
			MedianInterInvoiceDays:  30,
		},
	}}
	syncer := NewSyncer(db, source, zap.NewNop().Sugar())

	today := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	result, err := syncer.Run(context.Background(), today, noopProgress)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowsProcessed)
	assert.Equal(t, 1, result.AccountsCreated)
	assert.Equal(t, 1, result.ClientsUpserted)
	assert.Equal(t, 1, result.RulesCreated)

	account, err := db.AccountRepository().GetByNaturalKey(context.Background(), 100, "ACC-100")
	require.NoError(t, err)
	assert.Equal(t, "Acme Hospital", account.ClientName)
	assert.NotNil(t, account.NextRunAt)
	assert.Equal(t, entity.PeriodMonthly, account.PeriodType)
}

func TestSyncer_SoftDeletesVanishedAccount(t *testing.T) {
	db := memory.NewDatabase()
	existing := &entity.Account{
		VMAccountID:     200,
		VMAccountNumber: "ACC-200",
		Audit:           entity.Audit{CreatedAt: entity.Now(), ModifiedAt: entity.Now()},
	}
	require.NoError(t, db.AccountRepository().Create(context.Background(), existing))

	source := &fakeSource{rows: nil}
	syncer := NewSyncer(db, source, zap.NewNop().Sugar())

	result, err := syncer.Run(context.Background(), entity.Now(), noopProgress)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AccountsDeleted)

	got, err := db.AccountRepository().GetByID(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
}

func TestSyncer_RespectsManualOverrideOnRuleSync(t *testing.T) {
	db := memory.NewDatabase()
	account := &entity.Account{
		VMAccountID:     300,
		VMAccountNumber: "ACC-300",
		Audit:           entity.Audit{CreatedAt: entity.Now(), ModifiedAt: entity.Now()},
	}
	require.NoError(t, db.AccountRepository().Create(context.Background(), account))

	frozen := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	overridden := &entity.AccountRule{
		AccountID:            account.ID,
		JobTypeID:            entity.JobTypeDownloadInvoice,
		PeriodType:           entity.PeriodAnnually,
		NextRunAt:            &frozen,
		NextRangeStartAt:     &frozen,
		NextRangeEndAt:       &frozen,
		IsEnabled:            true,
		IsManuallyOverridden: true,
	}
	require.NoError(t, db.AccountRuleRepository().Create(context.Background(), overridden))

	last := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: []ExternalRow{
		{VMAccountID: 300, VMAccountNumber: "ACC-300", CredentialID: 1, LastInvoiceDate: &last, InvoiceCount: 2, MedianInterInvoiceDays: 30},
	}}
	syncer := NewSyncer(db, source, zap.NewNop().Sugar())

	result, err := syncer.Run(context.Background(), time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), noopProgress)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RulesSkipped)

	rule, err := db.AccountRuleRepository().GetActiveByAccount(context.Background(), account.ID, entity.JobTypeDownloadInvoice)
	require.NoError(t, err)
	assert.Equal(t, entity.PeriodAnnually, rule.PeriodType)
	assert.True(t, rule.IsManuallyOverridden)
}

func TestSyncer_RowWithoutExternalClientSkipsClientUpsert(t *testing.T) {
	db := memory.NewDatabase()
	source := &fakeSource{rows: []ExternalRow{
		{VMAccountID: 400, VMAccountNumber: "ACC-400", CredentialID: 1, MedianInterInvoiceDays: 30},
	}}
	syncer := NewSyncer(db, source, zap.NewNop().Sugar())

	result, err := syncer.Run(context.Background(), entity.Now(), noopProgress)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowsProcessed)
	assert.Equal(t, 0, result.RowErrors)
	assert.Equal(t, 0, result.ClientsUpserted)
}
