// Package notify defines the alerting collaborator invoked on run
// lifecycle transitions and failures.
package notify

import (
	"context"
	"log/slog"
)

// Kind classifies one user-visible notification.
type Kind string

const (
	KindRunStarted    Kind = "run.started"
	KindRunCompleted  Kind = "run.completed"
	KindRunFailed     Kind = "run.failed"
	KindStageFailed   Kind = "stage.failed"
	KindSubTaskFailed Kind = "subtask.failed"
	KindStreamFailed  Kind = "stream.failed"
)

// Notifier delivers user-visible alerts. Implementations must be cheap:
// the progress engine calls them synchronously on its event path.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, executionID string, details map[string]any) error
}

// SlogNotifier writes notifications to structured logs. It is the
// default collaborator when no delivery channel is configured.
type SlogNotifier struct {
	logger *slog.Logger
}

func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger}
}

func (n *SlogNotifier) Notify(ctx context.Context, kind Kind, executionID string, details map[string]any) error {
	n.logger.InfoContext(ctx, "notification",
		"kind", string(kind),
		"execution_id", executionID,
		"details", details,
	)

	return nil
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Kind, string, map[string]any) error {
	return nil
}

// MultiNotifier fans one notification out to several delivery channels.
// The first failure is returned, but every notifier is still invoked.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (n *MultiNotifier) Notify(ctx context.Context, kind Kind, executionID string, details map[string]any) error {
	var firstErr error

	for _, notifier := range n.notifiers {
		if err := notifier.Notify(ctx, kind, executionID, details); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
