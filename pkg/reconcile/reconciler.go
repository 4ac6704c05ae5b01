// Package reconcile backstops the live event stream with polling. When
// the transport is not confirmed connected, or right after a reconnect
// while a run still looks live, the reconciler queries the executor's
// status surface until it observes a terminal state.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulseline/pulseline/pkg/models"
)

// DefaultInterval is the polling cadence.
const DefaultInterval = 2 * time.Second

// ExecutionStatus is the executor's answer to a status query.
type ExecutionStatus struct {
	Status             models.RunStatus `json:"status"`
	ProgressPercentage float64          `json:"progress_percentage"`
	CurrentStep        string           `json:"current_step,omitempty"`
	CurrentNode        string           `json:"current_node,omitempty"`
}

// ExecutionDetail is the executor's answer to a detail query, fetched
// once after a terminal status is observed.
type ExecutionDetail struct {
	FinalResult  map[string]any `json:"final_result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// StatusClient queries the executor for the current run status.
type StatusClient interface {
	ExecutionStatus(ctx context.Context, executionID string) (*ExecutionStatus, error)
}

// DetailClient fetches the final result or error of a finished run.
type DetailClient interface {
	ExecutionDetail(ctx context.Context, executionID string) (*ExecutionDetail, error)
}

// Applier is the slice of the progress engine the reconciler writes
// through. Poll results re-enter the engine as ordinary canonical
// messages, so the push path and the poll path stay idempotent toward
// the same terminal state.
type Applier interface {
	Dispatch(ctx context.Context, msg map[string]any)
	Run() models.Run
}

// Reconciler polls the status collaborator at a fixed cadence. At most
// one polling loop runs at a time.
type Reconciler struct {
	logger   *slog.Logger
	status   StatusClient
	detail   DetailClient
	applier  Applier
	interval time.Duration

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewReconciler(logger *slog.Logger, status StatusClient, detail DetailClient, applier Applier, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Reconciler{
		logger:   logger,
		status:   status,
		detail:   detail,
		applier:  applier,
		interval: interval,
	}
}

// Start begins polling for the given execution. Starting an already
// running reconciler is a no-op.
func (r *Reconciler) Start(ctx context.Context, executionID string) {
	if !r.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go r.loop(ctx, executionID)
}

// Stop ends the polling loop. Stopping is advisory toward the remote
// executor: the run itself keeps going unless cancelled separately.
// Safe to call concurrently with Start.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Running reports whether a polling loop is active.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

func (r *Reconciler) loop(ctx context.Context, executionID string) {
	defer r.running.Store(false)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := r.poll(ctx, executionID); done {
				return
			}
		}
	}
}

// poll queries once and applies the answer. Returns true when a terminal
// state was observed and merged.
func (r *Reconciler) poll(ctx context.Context, executionID string) bool {
	status, err := r.status.ExecutionStatus(ctx, executionID)
	if err != nil {
		r.logger.WarnContext(ctx, "Status poll failed", "execution_id", executionID, "error", err)

		return false
	}

	if !status.Status.IsTerminal() {
		r.applier.Dispatch(ctx, map[string]any{
			"type":         "run",
			"subtype":      "progress",
			"execution_id": executionID,
			"progress":     status.ProgressPercentage,
			"current_step": currentStep(status),
		})

		return false
	}

	r.applyTerminal(ctx, executionID, status)

	return true
}

func (r *Reconciler) applyTerminal(ctx context.Context, executionID string, status *ExecutionStatus) {
	detail := &ExecutionDetail{}

	if r.detail != nil {
		fetched, err := r.detail.ExecutionDetail(ctx, executionID)
		if err != nil {
			r.logger.WarnContext(ctx, "Detail fetch failed", "execution_id", executionID, "error", err)
		} else {
			detail = fetched
		}
	}

	msg := map[string]any{
		"type":         "run",
		"execution_id": executionID,
		"status":       string(status.Status),
	}

	switch status.Status {
	case models.RunStatusFailed:
		msg["subtype"] = "error"
		msg["error"] = detail.ErrorMessage
	default:
		msg["subtype"] = "end"

		if detail.FinalResult != nil {
			msg["final_result"] = detail.FinalResult
		}
	}

	r.applier.Dispatch(ctx, msg)
}

func currentStep(status *ExecutionStatus) string {
	if status.CurrentStep != "" {
		return status.CurrentStep
	}

	return status.CurrentNode
}
