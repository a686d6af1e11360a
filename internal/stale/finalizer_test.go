package stale

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository/memory"
)

func TestFinalizer_CancelsExpiredWindowAndAdvancesRule(t *testing.T) {
	db := memory.NewDatabase()
	today := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	account := &entity.Account{ID: uuid.New(), Audit: entity.Audit{CreatedAt: entity.Now(), ModifiedAt: entity.Now()}}
	require.NoError(t, db.AccountRepository().Create(context.Background(), account))

	anchor := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	rule := &entity.AccountRule{
		ID:               uuid.New(),
		AccountID:        account.ID,
		JobTypeID:        entity.JobTypeDownloadInvoice,
		PeriodType:       entity.PeriodMonthly,
		NextRunAt:        &anchor,
		NextRangeStartAt: &anchor,
		NextRangeEndAt:   &rangeEnd,
		IsEnabled:        true,
	}
	require.NoError(t, db.AccountRuleRepository().Create(context.Background(), rule))

	job := &entity.Job{
		ID:               uuid.New(),
		AccountID:        account.ID,
		AccountRuleID:    &rule.ID,
		Status:           entity.JobPending,
		NextRunAt:        anchor,
		NextRangeStartAt: anchor,
		NextRangeEndAt:   rangeEnd,
	}
	require.NoError(t, db.JobRepository().Create(context.Background(), job))

	f := NewFinalizer(db, 1000, zap.NewNop().Sugar())
	result, err := f.Run(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cancelled)

	got, err := db.JobRepository().GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobCancelled, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "missed window ended 2026-06-15")

	advancedRule, err := db.AccountRuleRepository().GetByID(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), *advancedRule.NextRunAt)
}

func TestFinalizer_NoStaleJobsIsNoop(t *testing.T) {
	db := memory.NewDatabase()
	f := NewFinalizer(db, 1000, zap.NewNop().Sugar())
	result, err := f.Run(context.Background(), entity.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Cancelled)
}
