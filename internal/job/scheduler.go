package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// JobScheduler manages job enqueueing to Asynq
type JobScheduler struct {
	client *asynq.Client
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(redisAddr string) (*JobScheduler, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})

	// Test connection
	if err := client.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &JobScheduler{client: client}, nil
}

// Job types
const (
	TypeAccountSync      = "orchestrator:account_sync"
	TypeOrchestrationRun = "orchestrator:run"
	TypeStaleFinalize    = "orchestrator:stale_finalize"
)

// AccountSyncPayload carries the as-of date AccountSync should reconcile
// against.
type AccountSyncPayload struct {
	AsOf time.Time `json:"as_of"`
}

// EnqueueAccountSync enqueues an account sync pass
func (s *JobScheduler) EnqueueAccountSync(ctx context.Context, asOf time.Time) (*asynq.TaskInfo, error) {
	payload := AccountSyncPayload{AsOf: asOf}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeAccountSync, payloadBytes)

	info, err := s.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("orchestrator_periodic"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue account sync job: %w", err)
	}

	return info, nil
}

// OrchestrationRunPayload identifies who asked for the pipeline pass —
// "scheduler" for cron-triggered runs, an operator name for manual ones
// requested through the API.
type OrchestrationRunPayload struct {
	RequestedBy string `json:"requested_by"`
}

// EnqueueOrchestrationRun enqueues one OrchestratorCore pipeline pass. A
// run that fails mid-pipeline is left failed rather than retried — retrying
// blind against partially-advanced rule state would risk double-advancing
// a billing cycle, so MaxRetry is 0 here unlike the other two job types.
func (s *JobScheduler) EnqueueOrchestrationRun(ctx context.Context, requestedBy string) (*asynq.TaskInfo, error) {
	payload := OrchestrationRunPayload{RequestedBy: requestedBy}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeOrchestrationRun, payloadBytes)

	info, err := s.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(0),
		asynq.Timeout(4*time.Hour),
		asynq.Queue("orchestrator_periodic"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue orchestration run job: %w", err)
	}

	return info, nil
}

// StaleFinalizePayload carries the as-of date StalePendingFinalizer should
// sweep against.
type StaleFinalizePayload struct {
	AsOf time.Time `json:"as_of"`
}

// EnqueueStaleFinalize enqueues one stale-pending finalizer sweep
func (s *JobScheduler) EnqueueStaleFinalize(ctx context.Context, asOf time.Time) (*asynq.TaskInfo, error) {
	payload := StaleFinalizePayload{AsOf: asOf}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeStaleFinalize, payloadBytes)

	info, err := s.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("orchestrator_periodic"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue stale finalize job: %w", err)
	}

	return info, nil
}

// Close closes the job scheduler and releases resources
func (s *JobScheduler) Close() error {
	return s.client.Close()
}

// GetTaskInfo retrieves information about a task
func (s *JobScheduler) GetTaskInfo(ctx context.Context, taskID string) (*asynq.TaskInfo, error) {
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: s.client.String()})
	defer inspector.Close()

	return inspector.GetTaskInfo(ctx, "orchestrator_periodic", taskID)
}
