package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/routinehq/routine/pkg/channels/gochannel"
	"github.com/routinehq/routine/pkg/channels/kafka"
	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/store"
	"github.com/routinehq/routine/pkg/store/memory"
	"github.com/routinehq/routine/pkg/store/postgres"
	"github.com/routinehq/routine/pkg/store/redis"
)

// newStore selects the store backend from the database URL scheme:
// postgres://, redis://, or memory:// (the default when empty).
func newStore(ctx context.Context, logger *slog.Logger, databaseURL string) (store.Store, error) {
	switch {
	case databaseURL == "" || strings.HasPrefix(databaseURL, "memory://"):
		return memory.NewStore(), nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.NewStore(ctx, logger, databaseURL)
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		return redis.NewStore(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database url: %q", databaseURL)
	}
}

// newEventBus selects the lifecycle event channel. The in-process channel
// is the default; kafka is opt-in for deployments that forward events to a
// broker.
func newEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "", "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "routined")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %q", provider)
	}
}
