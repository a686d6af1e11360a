package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResultCreation(t *testing.T) {
	result := NewResult()

	assert.NotNil(t, result)
	assert.Empty(t, result.Messages)
	assert.True(t, result.IsValid())
	assert.True(t, result.IsClean())
}

func TestAddError(t *testing.T) {
	result := NewResult()

	result.AddError(CodeOutOfRange, "batch_size must be positive")

	assert.Len(t, result.Messages, 1)
	assert.False(t, result.IsValid())
	assert.False(t, result.IsClean())
	assert.Equal(t, 1, result.ErrorCount())
}

func TestAddWarning(t *testing.T) {
	result := NewResult()

	result.AddWarning(CodeOutOfRange, "daily_status_check_delay_days is negative")

	assert.Len(t, result.Messages, 1)
	assert.True(t, result.IsValid()) // Warnings don't make it invalid
	assert.False(t, result.IsClean())
	assert.Equal(t, 1, result.WarningCount())
}

func TestAddInfo(t *testing.T) {
	result := NewResult()

	result.AddInfo("INFO_CODE", "This is informational")

	assert.Len(t, result.Messages, 1)
	assert.True(t, result.IsValid())
	assert.True(t, result.IsClean())
	assert.Equal(t, 1, result.InfoCount())
}

func TestMultipleMessages(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeOutOfRange, "max_retries cannot be negative").
		AddWarning(CodeOutOfRange, "test mode job cap is zero").
		AddInfo("INFO_CODE", "Processing completed with warnings")

	assert.Len(t, result.Messages, 3)
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, 1, result.WarningCount())
	assert.Equal(t, 1, result.InfoCount())
	assert.False(t, result.IsValid())
	assert.False(t, result.IsClean())
}

func TestMessagesByCode(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeOutOfRange, "batch_size must be positive").
		AddError(CodeOutOfRange, "max_retries cannot be negative")

	messages := result.MessagesByCode(CodeOutOfRange)

	assert.Len(t, messages, 2)
	for _, msg := range messages {
		assert.Equal(t, CodeOutOfRange, msg.Code)
	}
}

func TestMessagesBySeverity(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeOutOfRange, "Error 1").
		AddError(CodeOutOfRange, "Error 2").
		AddWarning(CodeOutOfRange, "Warning 1").
		AddInfo("CODE", "Info 1")

	errors := result.MessagesBySeverity(SeverityError)
	warnings := result.MessagesBySeverity(SeverityWarning)
	infos := result.MessagesBySeverity(SeverityInfo)

	assert.Len(t, errors, 2)
	assert.Len(t, warnings, 1)
	assert.Len(t, infos, 1)
}

func TestHasErrorsAndWarnings(t *testing.T) {
	resultClean := NewResult()
	assert.False(t, resultClean.HasErrors())
	assert.False(t, resultClean.HasWarnings())

	resultWithError := NewResult().AddError("CODE", "Error")
	assert.True(t, resultWithError.HasErrors())
	assert.False(t, resultWithError.HasWarnings())

	resultWithWarning := NewResult().AddWarning("CODE", "Warning")
	assert.False(t, resultWithWarning.HasErrors())
	assert.True(t, resultWithWarning.HasWarnings())

	resultWithBoth := NewResult().
		AddError("ERR", "Error").
		AddWarning("WARN", "Warning")
	assert.True(t, resultWithBoth.HasErrors())
	assert.True(t, resultWithBoth.HasWarnings())
}

func TestWithContext(t *testing.T) {
	result := NewResult()

	context := map[string]interface{}{
		"field": "batch_size",
		"value": -1,
	}

	result.AddErrorWithContext(CodeOutOfRange, "batch_size must be positive", context)

	assert.Len(t, result.Messages, 1)
	msg := result.Messages[0]
	assert.Equal(t, context, msg.Context)
	assert.Equal(t, "batch_size", msg.Context["field"])
}

func TestToJSON(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeOutOfRange, "batch_size must be positive").
		AddWarning(CodeOutOfRange, "test mode job cap is zero")

	json, err := result.ToJSON()

	assert.NoError(t, err)
	assert.NotEmpty(t, json)
	assert.Contains(t, json, CodeOutOfRange)
	assert.Contains(t, json, "ERROR")
	assert.Contains(t, json, "WARNING")
}

func TestFromJSON(t *testing.T) {
	original := NewResult()
	original.
		AddError(CodeOutOfRange, "batch_size must be positive").
		AddWarning(CodeOutOfRange, "test mode job cap is zero")

	jsonStr, err := original.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(jsonStr)
	require.NoError(t, err)

	assert.Len(t, restored.Messages, 2)
	assert.Equal(t, original.ErrorCount(), restored.ErrorCount())
	assert.Equal(t, original.WarningCount(), restored.WarningCount())
}

func TestSummary(t *testing.T) {
	result := NewResult()
	result.
		AddError(CodeOutOfRange, "batch_size must be positive").
		AddWarning(CodeOutOfRange, "test mode job cap is zero").
		AddInfo("INFO", "Done")

	summary := result.Summary()

	assert.Contains(t, summary, "1 errors")
	assert.Contains(t, summary, "1 warnings")
	assert.Contains(t, summary, "1 info")
	assert.Contains(t, summary, CodeOutOfRange)
}

func TestChaining(t *testing.T) {
	result := NewResult().
		AddError("CODE1", "Error 1").
		AddWarning("CODE2", "Warning 1").
		AddInfo("CODE3", "Info 1")

	assert.Len(t, result.Messages, 3)
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, 1, result.WarningCount())
	assert.Equal(t, 1, result.InfoCount())
}

func TestConfigValidationScenario(t *testing.T) {
	result := NewResult()

	result.AddErrorWithContext(
		CodeOutOfRange,
		"batch_size must be positive",
		map[string]interface{}{"value": -100},
	)

	result.AddErrorWithContext(
		CodeOutOfRange,
		"max_parallel_requests must be positive",
		map[string]interface{}{"value": 0},
	)

	result.AddWarning(
		CodeOutOfRange,
		"daily_status_check_delay_days is negative, status checks will run immediately",
	)

	assert.False(t, result.IsValid())
	assert.False(t, result.IsClean())
	assert.True(t, result.HasErrors())
	assert.True(t, result.HasWarnings())
	assert.Equal(t, 2, result.ErrorCount())
	assert.Equal(t, 1, result.WarningCount())
}
