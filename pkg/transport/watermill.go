package transport

import (
	"context"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
)

// WatermillTransport adapts a watermill subscriber into the message
// stream the engine consumes. Broker reconnection is the subscriber's
// concern; from this side the channel is confirmed connected once the
// subscription is live.
type WatermillTransport struct {
	subscriber  message.Subscriber
	topic       string
	connected   atomic.Bool
	reconnected chan struct{}
}

func NewWatermillTransport(subscriber message.Subscriber, topic string) *WatermillTransport {
	if topic == "" {
		topic = ProgressTopic
	}

	return &WatermillTransport{
		subscriber:  subscriber,
		topic:       topic,
		reconnected: make(chan struct{}, 1),
	}
}

func (t *WatermillTransport) Messages(ctx context.Context) (<-chan []byte, error) {
	messages, err := t.subscriber.Subscribe(ctx, t.topic)
	if err != nil {
		return nil, err
	}

	t.connected.Store(true)

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer t.connected.Store(false)

		for msg := range messages {
			select {
			case out <- msg.Payload:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()

				return
			}
		}
	}()

	return out, nil
}

func (t *WatermillTransport) Connected() bool {
	return t.connected.Load()
}

func (t *WatermillTransport) Reconnected() <-chan struct{} {
	return t.reconnected
}

func (t *WatermillTransport) Close() error {
	return t.subscriber.Close()
}
