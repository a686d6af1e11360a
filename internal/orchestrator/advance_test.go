package orchestrator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcgerke/invoice-orchestrator/internal/billing"
	"github.com/lcgerke/invoice-orchestrator/internal/entity"
)

func TestAdvanceRule_UsesJobNextRunAtAsAnchor(t *testing.T) {
	jobAnchor := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	rangeStart := jobAnchor.AddDate(0, 0, -7)
	rangeEnd := jobAnchor.AddDate(0, 0, 14)

	rule := &entity.AccountRule{
		ID:               uuid.New(),
		PeriodType:       entity.PeriodMonthly,
		NextRunAt:        &jobAnchor,
		NextRangeStartAt: &rangeStart,
		NextRangeEndAt:   &rangeEnd,
	}
	account := &entity.Account{ID: uuid.New(), HistoricalBillingStatus: entity.StatusDueNow}
	job := &entity.Job{NextRunAt: jobAnchor}

	today := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC) // status check ran late
	AdvanceRule(rule, account, job, today)

	require.NotNil(t, rule.NextRunAt)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), *rule.NextRunAt)
	assert.Equal(t, time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC), *rule.NextRangeStartAt)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *rule.NextRangeEndAt)

	assert.Equal(t, rule.NextRunAt, account.NextRunAt)
	assert.Equal(t, entity.PeriodMonthly, account.PeriodType)
}

func TestAdvanceRule_NeverClearsManualOverride(t *testing.T) {
	jobAnchor := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	rule := &entity.AccountRule{
		PeriodType:           entity.PeriodMonthly,
		NextRunAt:            &jobAnchor,
		IsManuallyOverridden: true,
	}
	account := &entity.Account{}
	job := &entity.Job{NextRunAt: jobAnchor}

	AdvanceRule(rule, account, job, jobAnchor)
	assert.True(t, rule.IsManuallyOverridden)
}

func TestAdvanceRule_ClampsImplausibleWindowOffsets(t *testing.T) {
	jobAnchor := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	badRangeStart := jobAnchor.AddDate(0, 0, 10) // start after anchor: negative offset
	rule := &entity.AccountRule{
		PeriodType:       entity.PeriodMonthly,
		NextRunAt:        &jobAnchor,
		NextRangeStartAt: &badRangeStart,
		NextRangeEndAt:   &jobAnchor,
	}
	account := &entity.Account{}
	job := &entity.Job{NextRunAt: jobAnchor}

	AdvanceRule(rule, account, job, jobAnchor)
	// Falls back to the period-type default (Monthly: 5 days) since the
	// computed offset was negative.
	wantBefore, _ := billing.WindowDefaultsForPeriod(entity.PeriodMonthly)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -int(wantBefore)), *rule.NextRangeStartAt)
}

func TestAdvanceLastSuccessfulDownload_NoPriorValueUsesJobDate(t *testing.T) {
	jobDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	account := &entity.Account{}
	got := AdvanceLastSuccessfulDownload(account, jobDate, entity.PeriodMonthly, 1)
	assert.Equal(t, jobDate, got)
}

func TestAdvanceLastSuccessfulDownload_PreventsLateCreep(t *testing.T) {
	prior := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	account := &entity.Account{LastSuccessfulDownloadAt: &prior}
	late := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC) // vendor responded late
	got := AdvanceLastSuccessfulDownload(account, late, entity.PeriodMonthly, 1)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestAdvanceLastSuccessfulDownload_AllowsEarlier(t *testing.T) {
	prior := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	account := &entity.Account{LastSuccessfulDownloadAt: &prior}
	early := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	got := AdvanceLastSuccessfulDownload(account, early, entity.PeriodMonthly, 1)
	assert.Equal(t, early, got)
}

func TestQueue_RejectsConcurrentStart(t *testing.T) {
	q := NewQueue()
	run1 := &entity.OrchestrationRun{ID: uuid.New()}
	run2 := &entity.OrchestrationRun{ID: uuid.New()}

	require.NoError(t, q.TryStart(run1))
	assert.ErrorIs(t, q.TryStart(run2), ErrAlreadyRunning)
	assert.True(t, q.IsRunning())

	q.Finish()
	assert.False(t, q.IsRunning())
	require.NoError(t, q.TryStart(run2))
}
