// Package blacklist loads active exclusion entries once per run and applies
// them in memory, keeping the hot path of CreateJobs free of a per-account
// database round trip.
package blacklist

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// Filter answers IsBlacklisted against a snapshot of active entries loaded
// at construction time.
type Filter struct {
	entries []*entity.BlacklistEntry
	loadedOn time.Time
}

// Load reads every active blacklist entry as of today. On repository
// failure it fails open — an empty Filter that excludes nothing — and logs
// the error rather than blocking the run; a blacklist outage must not stall
// the pipeline.
func Load(ctx context.Context, repo repository.BlacklistRepository, today time.Time, log *zap.SugaredLogger) *Filter {
	entries, err := repo.ListActive(ctx, today)
	if err != nil {
		log.Errorw("failed to load blacklist entries, proceeding with none", "error", err)
		return &Filter{loadedOn: today}
	}
	log.Infow("loaded blacklist entries", "count", len(entries))
	return &Filter{entries: entries, loadedOn: today}
}

// IsBlacklisted reports whether the account is excluded from the requested
// operation, checking both the match predicate and the entry's effective
// window against the day the Filter was loaded.
func (f *Filter) IsBlacklisted(account *entity.Account, requestedType entity.ExclusionType) bool {
	for _, e := range f.entries {
		if !e.EffectiveOn(f.loadedOn) {
			continue
		}
		if e.Matches(account, requestedType) {
			return true
		}
	}
	return false
}

// Count returns the number of active entries in the snapshot, for run
// summaries.
func (f *Filter) Count() int {
	return len(f.entries)
}

// CreateEntry validates and persists a new blacklist entry. At least one of
// the five optional match fields must be set, or the entry would match
// nothing.
func CreateEntry(ctx context.Context, repo repository.BlacklistRepository, e *entity.BlacklistEntry) error {
	if e.PrimaryVendorCode == nil && e.MasterVendorCode == nil && e.VMAccountID == nil &&
		e.VMAccountNumber == nil && e.CredentialID == nil {
		return fmt.Errorf("blacklist entry must set at least one match field")
	}
	if !entity.ValidateExclusionType(string(e.ExclusionType)) {
		return fmt.Errorf("unknown exclusion type %q", e.ExclusionType)
	}
	if err := repo.Create(ctx, e); err != nil {
		return fmt.Errorf("failed to create blacklist entry: %w", err)
	}
	return nil
}
