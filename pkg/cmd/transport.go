// Package cmd provides shared constructors for the command-line
// entrypoints.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/pulseline/pulseline/pkg/channels/gochannel"
	"github.com/pulseline/pulseline/pkg/channels/kafka"
	"github.com/pulseline/pulseline/pkg/config"
	"github.com/pulseline/pulseline/pkg/transport"
)

// NewTransport builds the progress transport selected by configuration.
// Bus-backed providers also return a publisher for outbound alerts; the
// websocket provider is receive-only, so its publisher is nil.
func NewTransport(cfg *config.ConsoleConfig, logger *slog.Logger) (transport.Transport, message.Publisher, error) {
	switch cfg.Transport.Provider {
	case "websocket":
		return transport.NewWebsocketTransport(cfg.Transport.WebsocketURL, logger), nil, nil

	case "kafka":
		publisher, subscriber, err := kafka.CreateChannel(
			watermill.NewSlogLogger(logger),
			cfg.Transport.KafkaBrokers,
			"pulseline",
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Kafka channel: %w", err)
		}

		return transport.NewWatermillTransport(subscriber, cfg.Transport.Topic), publisher, nil

	case "gochannel":
		publisher, subscriber, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create in-memory channel: %w", err)
		}

		return transport.NewWatermillTransport(subscriber, cfg.Transport.Topic), publisher, nil

	default:
		return nil, nil, fmt.Errorf("unsupported transport provider: %s", cfg.Transport.Provider)
	}
}
