package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/notify"
	"github.com/lcgerke/invoice-orchestrator/internal/repository/memory"
)

type captureEmail struct {
	subject, body string
	sent           bool
}

func (c *captureEmail) Send(ctx context.Context, subject, body string, attachment []byte) error {
	c.subject, c.body, c.sent = subject, body, true
	return nil
}

func TestRecovery_FailsAbandonedExecutionsAndInterruptsRuns(t *testing.T) {
	db := memory.NewDatabase()
	appStart := time.Date(2026, 7, 29, 8, 0, 0, 0, time.UTC)

	staleStart := appStart.Add(-20 * time.Minute)
	exec := &entity.JobExecution{ID: uuid.New(), JobID: uuid.New(), StartAt: staleStart}
	require.NoError(t, db.JobExecutionRepository().Create(context.Background(), exec))

	run := &entity.OrchestrationRun{
		ID:          uuid.New(),
		RequestedBy: "scheduler",
		RequestedAt: appStart.Add(-time.Hour),
		StartedAt:   &staleStart,
		Status:      entity.RunRunning,
	}
	require.NoError(t, db.OrchestrationRunRepository().Create(context.Background(), run))

	email := &captureEmail{}
	rec := New(db, email, zap.NewNop().Sugar())
	result, err := rec.Run(context.Background(), appStart, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExecutionsFailed)
	assert.Equal(t, 1, result.RunsInterrupted)
	assert.True(t, email.sent)

	gotExec, err := db.JobExecutionRepository().GetByID(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.True(t, gotExec.IsError)
	require.NotNil(t, gotExec.EndAt)

	gotRun, err := db.OrchestrationRunRepository().GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunInterrupted, gotRun.Status)
}

func TestRecovery_SkipsWhenRunStartedAfterAppStartIsActive(t *testing.T) {
	db := memory.NewDatabase()
	appStart := time.Date(2026, 7, 29, 8, 0, 0, 0, time.UTC)

	activeStart := appStart.Add(time.Minute)
	active := &entity.OrchestrationRun{
		ID:          uuid.New(),
		RequestedBy: "scheduler",
		RequestedAt: activeStart,
		StartedAt:   &activeStart,
		Status:      entity.RunRunning,
	}
	require.NoError(t, db.OrchestrationRunRepository().Create(context.Background(), active))

	rec := New(db, notify.NewLoggingEmailService(zap.NewNop().Sugar()), zap.NewNop().Sugar())
	result, err := rec.Run(context.Background(), appStart, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RunsInterrupted)

	got, err := db.OrchestrationRunRepository().GetByID(context.Background(), active.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunRunning, got.Status)
}
