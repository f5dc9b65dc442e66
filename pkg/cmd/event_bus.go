package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/donorflow/donorflow/pkg/channels/gochannel"
	"github.com/donorflow/donorflow/pkg/channels/kafka"
	"github.com/donorflow/donorflow/pkg/eventbus"
)

func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "donorflow")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
