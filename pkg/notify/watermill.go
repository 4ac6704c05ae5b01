package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// AlertTopic is the bus topic alert messages are published on.
const AlertTopic = "pulseline.alerts"

// Alert is the wire form of one published notification.
type Alert struct {
	Kind        Kind           `json:"kind"`
	ExecutionID string         `json:"execution_id"`
	Details     map[string]any `json:"details,omitempty"`
	RaisedAt    time.Time      `json:"raised_at"`
}

// BusNotifier publishes alerts on a watermill topic so external
// consumers (desktop notifiers, chat hooks) can fan them out.
type BusNotifier struct {
	publisher message.Publisher
}

func NewBusNotifier(publisher message.Publisher) *BusNotifier {
	return &BusNotifier{publisher: publisher}
}

func (n *BusNotifier) Notify(ctx context.Context, kind Kind, executionID string, details map[string]any) error {
	alert := Alert{
		Kind:        kind,
		ExecutionID: executionID,
		Details:     details,
		RaisedAt:    time.Now().UTC(),
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	msg := message.NewMessage("alert-"+watermill.NewULID(), payload)
	msg.Metadata.Set("kind", string(kind))
	msg.Metadata.Set("execution_id", executionID)

	return n.publisher.Publish(AlertTopic, msg)
}
