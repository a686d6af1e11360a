package helpers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
)

func TestClientBuilder_Defaults(t *testing.T) {
	c := NewClientBuilder().Build()
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.True(t, c.IsActive)
}

func TestClientBuilder_Overrides(t *testing.T) {
	c := NewClientBuilder().WithName("Acme Radiology").WithCode("ACME-RAD").WithActive(false).Build()
	assert.Equal(t, "Acme Radiology", c.Name)
	assert.Equal(t, "ACME-RAD", c.Code)
	assert.False(t, c.IsActive)
}

func TestAccountBuilder_Defaults(t *testing.T) {
	a := NewAccountBuilder().Build()
	assert.Equal(t, int64(1000), a.VMAccountID)
	assert.False(t, a.IsDeleted)
}

func TestAccountBuilder_WithNextRun(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	a := NewAccountBuilder().WithNextRun(now, now.AddDate(0, 0, -5), now.AddDate(0, 0, 5)).Build()
	assert.Equal(t, now, *a.NextRunAt)
}

func TestAccountRuleBuilder_DefaultsAreEnabledAndNotOverridden(t *testing.T) {
	r := NewAccountRuleBuilder().Build()
	assert.True(t, r.IsEnabled)
	assert.False(t, r.IsManuallyOverridden)
	assert.True(t, r.HasCompleteSchedule())
}

func TestAccountRuleBuilder_ManualOverride(t *testing.T) {
	r := NewAccountRuleBuilder().WithManualOverride(true).Build()
	assert.True(t, r.IsManuallyOverridden)
}

func TestJobBuilder_DefaultsPending(t *testing.T) {
	j := NewJobBuilder().Build()
	assert.Equal(t, entity.JobPending, j.Status)
}

func TestJobBuilder_WithStatus(t *testing.T) {
	j := NewJobBuilder().WithStatus(entity.JobCompleted).Build()
	assert.Equal(t, entity.JobCompleted, j.Status)
}

func TestOrchestrationRunBuilder_Defaults(t *testing.T) {
	r := NewOrchestrationRunBuilder().Build()
	assert.Equal(t, entity.RunRunning, r.Status)
	assert.Equal(t, "scheduler", r.RequestedBy)
}

func TestBlacklistEntryBuilder_Defaults(t *testing.T) {
	e := NewBlacklistEntryBuilder().Build()
	assert.True(t, e.IsActive)
	assert.Equal(t, entity.ExclusionAll, e.ExclusionType)
}
