// Package config loads the single operational Configuration row (§3)
// whenever Holder.Refresh is called (cmd/server does so once, at startup),
// with a YAML fallback for every field that has never been written to the
// database.
package config

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/orchestrator"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
	"github.com/lcgerke/invoice-orchestrator/internal/validation"
)

// Defaults mirrors §6's documented fallback values, used whenever neither
// the database row nor the YAML file sets a field.
func Defaults() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	return cfg
}

// Holder exposes the merged, hot-reloadable configuration behind an
// atomic.Value so concurrent readers never block on a reload in flight.
type Holder struct {
	current atomic.Value // holds orchestrator.Config

	repo repository.ConfigurationRepository
	log  *zap.SugaredLogger
}

// NewHolder builds a Holder seeded from the YAML fallback file (or the
// built-in defaults when there is none), then starts watching the YAML
// file for hot reload of the fallback layer. It does not read repo;
// Refresh overlays the database row. The database row always wins over
// YAML when both set a field.
func NewHolder(repo repository.ConfigurationRepository, log *zap.SugaredLogger) (*Holder, error) {
	h := &Holder{repo: repo, log: log}

	v := viper.New()
	v.SetConfigName("orchestrator")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/invoice-orchestrator")
	v.SetEnvPrefix("ORCHESTRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fallback := Defaults()
	if err := v.ReadInConfig(); err == nil {
		_ = v.Unmarshal(&fallback)
	} else {
		log.Infow("no orchestrator.yaml fallback found, using built-in defaults", "error", err)
	}

	h.current.Store(mergeFromRow(nil, fallback))

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := Defaults()
		if err := v.Unmarshal(&updated); err != nil {
			log.Warnw("failed to reload orchestrator config fallback", "error", err)
			return
		}
		row, err := h.repo.Get(context.Background())
		if err != nil {
			if !repository.IsNotFound(err) {
				log.Warnw("failed to re-read configuration row on fallback reload", "error", err)
			}
			row = nil
		}
		h.current.Store(mergeFromRow(row, updated))
		log.Infow("reloaded orchestrator config fallback", "file", e.Name)
	})

	return h, nil
}

// Refresh reloads the database row and merges it over the current
// configuration. Only readers that call Get afterwards see the result; a
// Config value already handed out is not updated.
func (h *Holder) Refresh(ctx context.Context) error {
	row, err := h.repo.Get(ctx)
	if err != nil && !repository.IsNotFound(err) {
		return err
	}
	fallback := h.Get()
	h.current.Store(mergeFromRow(row, fallback))
	return nil
}

// Get returns the current merged configuration. Safe for concurrent use.
func (h *Holder) Get() orchestrator.Config {
	return h.current.Load().(orchestrator.Config)
}

// mergeFromRow overlays row's non-nil fields onto fallback, returning a
// new Config. A nil row returns fallback unchanged.
func mergeFromRow(row *entity.Configuration, fallback orchestrator.Config) orchestrator.Config {
	cfg := fallback
	if row == nil {
		return cfg
	}
	if row.BatchSize != nil {
		cfg.BatchSize = *row.BatchSize
	}
	if row.MaxParallelRequests != nil {
		cfg.MaxParallelRequests = *row.MaxParallelRequests
	}
	if row.DailyStatusCheckDelayDays != nil {
		cfg.DailyStatusCheckDelayDays = *row.DailyStatusCheckDelayDays
	}
	if row.ScrapeRetryDays != nil {
		cfg.ScrapeRetryDays = *row.ScrapeRetryDays
	}
	if row.CredentialCheckLeadDays != nil {
		cfg.CredentialCheckLeadDays = *row.CredentialCheckLeadDays
	}
	if row.MaxRetries != nil {
		cfg.MaxRetries = *row.MaxRetries
	}
	if row.TestModeEnabled != nil {
		cfg.TestModeEnabled = *row.TestModeEnabled
	}
	if row.TestModeMaxScrapingJobs != nil {
		cfg.TestModeMaxScrapingJobs = *row.TestModeMaxScrapingJobs
	}
	if row.TestModeMaxRebillJobs != nil {
		cfg.TestModeMaxRebillJobs = *row.TestModeMaxRebillJobs
	}
	if row.EnableDetailedLogging != nil {
		cfg.EnableDetailedLogging = *row.EnableDetailedLogging
	}
	if row.IsOrchestrationEnabled != nil {
		cfg.IsOrchestrationEnabled = *row.IsOrchestrationEnabled
	}
	return cfg
}

// Validate checks cfg against the operational bounds documented in §6,
// collecting every problem into a Result instead of stopping at the first.
// Errors mark values the orchestrator cannot run with; warnings mark
// unusual but workable values. The caller decides what to do with them:
// cmd/server exits on errors and logs warnings.
func Validate(cfg orchestrator.Config) *validation.Result {
	r := validation.NewResult()
	if cfg.BatchSize <= 0 {
		r.AddErrorWithContext(validation.CodeOutOfRange, "batch_size must be positive", map[string]interface{}{"value": cfg.BatchSize})
	}
	if cfg.MaxParallelRequests <= 0 {
		r.AddErrorWithContext(validation.CodeOutOfRange, "max_parallel_requests must be positive", map[string]interface{}{"value": cfg.MaxParallelRequests})
	}
	if cfg.MaxRetries < 0 {
		r.AddErrorWithContext(validation.CodeOutOfRange, "max_retries cannot be negative", map[string]interface{}{"value": cfg.MaxRetries})
	}
	if cfg.DailyStatusCheckDelayDays < 0 {
		r.AddWarningWithContext(validation.CodeOutOfRange, "daily_status_check_delay_days is negative, status checks will run immediately", map[string]interface{}{"value": cfg.DailyStatusCheckDelayDays})
	}
	if cfg.TestModeEnabled && (cfg.TestModeMaxScrapingJobs <= 0 || cfg.TestModeMaxRebillJobs <= 0) {
		r.AddWarning(validation.CodeOutOfRange, "test mode is enabled with a non-positive job cap, that cap is ignored and jobs are not limited")
	}
	return r
}

// StartupDelay returns how long StartupRecovery should wait before running,
// from the row if present, zero otherwise.
func StartupDelay(row *entity.Configuration) time.Duration {
	if row != nil && row.StartupDelaySeconds != nil {
		return time.Duration(*row.StartupDelaySeconds) * time.Second
	}
	return 0
}

// GracePeriod returns StartupRecovery's grace window for treating a
// Running JobExecution as abandoned.
func GracePeriod(row *entity.Configuration) time.Duration {
	if row != nil && row.GracePeriodMinutes != nil {
		return time.Duration(*row.GracePeriodMinutes) * time.Minute
	}
	return 10 * time.Minute
}
