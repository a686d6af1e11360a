package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/orchestrator"
	"github.com/lcgerke/invoice-orchestrator/internal/stale"
	"github.com/lcgerke/invoice-orchestrator/internal/sync"
)

// JobHandlers manages job execution handlers
type JobHandlers struct {
	syncer    *sync.Syncer
	core      *orchestrator.Core
	finalizer *stale.Finalizer
	log       *zap.SugaredLogger
}

// NewJobHandlers creates a new job handlers instance
func NewJobHandlers(syncer *sync.Syncer, core *orchestrator.Core, finalizer *stale.Finalizer, log *zap.SugaredLogger) *JobHandlers {
	return &JobHandlers{
		syncer:    syncer,
		core:      core,
		finalizer: finalizer,
		log:       log,
	}
}

// RegisterHandlers registers all job handlers with the Asynq mux
func (h *JobHandlers) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeAccountSync, h.HandleAccountSync)
	mux.HandleFunc(TypeOrchestrationRun, h.HandleOrchestrationRun)
	mux.HandleFunc(TypeStaleFinalize, h.HandleStaleFinalize)
}

// HandleAccountSync handles account sync jobs (C3)
func (h *JobHandlers) HandleAccountSync(ctx context.Context, t *asynq.Task) error {
	var payload AccountSyncPayload

	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	h.log.Infow("executing account sync job", "as_of", payload.AsOf)

	result, err := h.syncer.Run(ctx, payload.AsOf, nil)
	if err != nil {
		h.log.Errorw("account sync failed", "error", err)
		return fmt.Errorf("account sync error: %w", err)
	}

	h.log.Infow("account sync completed",
		"rows_processed", result.RowsProcessed,
		"accounts_created", result.AccountsCreated,
		"accounts_updated", result.AccountsUpdated,
		"accounts_deleted", result.AccountsDeleted,
		"row_errors", result.RowErrors,
	)

	return nil
}

// HandleOrchestrationRun handles orchestrator pipeline pass jobs (C4)
func (h *JobHandlers) HandleOrchestrationRun(ctx context.Context, t *asynq.Task) error {
	var payload OrchestrationRunPayload

	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	h.log.Infow("executing orchestration run job", "requested_by", payload.RequestedBy)

	run, err := h.core.Run(ctx, payload.RequestedBy, nil)
	if err != nil {
		if err == orchestrator.ErrAlreadyRunning {
			h.log.Warnw("orchestration run skipped: already running")
			return nil
		}
		h.log.Errorw("orchestration run failed", "error", err)
		return fmt.Errorf("orchestration run error: %w", err)
	}

	h.log.Infow("orchestration run completed", "run_id", run.ID, "status", run.Status)

	return nil
}

// HandleStaleFinalize handles stale-pending finalizer sweeps (C5)
func (h *JobHandlers) HandleStaleFinalize(ctx context.Context, t *asynq.Task) error {
	var payload StaleFinalizePayload

	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	h.log.Infow("executing stale finalize job", "as_of", payload.AsOf)

	result, err := h.finalizer.Run(ctx, payload.AsOf)
	if err != nil {
		h.log.Errorw("stale finalize failed", "error", err)
		return fmt.Errorf("stale finalize error: %w", err)
	}

	h.log.Infow("stale finalize completed", "cancelled", result.Cancelled)

	return nil
}
