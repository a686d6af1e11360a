package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lcgerke/invoice-orchestrator/internal/orchestrator"
)

func TestValidate_DefaultsAreValid(t *testing.T) {
	result := Validate(Defaults())
	assert.False(t, result.HasErrors())
	assert.False(t, result.HasWarnings())
}

func TestValidate_RejectsNonPositiveBatchSizeAndParallelism(t *testing.T) {
	cfg := Defaults()
	cfg.BatchSize = 0
	cfg.MaxParallelRequests = -1

	result := Validate(cfg)
	assert.True(t, result.HasErrors())
	assert.Equal(t, 2, result.ErrorCount())
}

func TestValidate_WarnsOnNegativeStatusCheckDelay(t *testing.T) {
	cfg := Defaults()
	cfg.DailyStatusCheckDelayDays = -1

	result := Validate(cfg)
	assert.False(t, result.HasErrors())
	assert.True(t, result.HasWarnings())
}

func TestValidate_WarnsOnZeroTestModeJobCaps(t *testing.T) {
	cfg := orchestrator.Config{
		BatchSize:           1000,
		MaxParallelRequests: 8,
		TestModeEnabled:     true,
	}

	result := Validate(cfg)
	assert.True(t, result.HasWarnings())
}
