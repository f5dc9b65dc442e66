// Package queue provides a Redis list receiver for CRM trigger events, for
// emitters that push to a queue instead of the Kafka bus.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/donorflow/donorflow/pkg/events"
)

// TriggerCallback receives each decoded trigger event.
type TriggerCallback func(ctx context.Context, event events.TriggerFired) error

// Receiver blocks on a Redis list and hands each trigger event to the
// callback.
type Receiver struct {
	Queue string

	client redis.UniversalClient
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewReceiver creates a receiver reading from the given list on the given
// Redis address.
func NewReceiver(addr, queue string, logger *slog.Logger) (*Receiver, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	if queue == "" {
		return nil, errors.New("queue name is required")
	}

	return &Receiver{
		Queue:  queue,
		client: redis.NewClient(&redis.Options{Addr: addr}),
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "queue_receiver",
			"queue", queue,
		),
	}, nil
}

// Start begins consuming. It returns once the consume loop is running.
func (r *Receiver) Start(ctx context.Context, callback TriggerCallback) error {
	err := r.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	r.wg.Add(1)

	go r.consume(ctx, callback)

	r.logger.InfoContext(ctx, "Queue receiver started")

	return nil
}

// Stop shuts the consume loop down and closes the client.
func (r *Receiver) Stop(ctx context.Context) error {
	close(r.stopCh)
	r.wg.Wait()

	err := r.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	r.logger.InfoContext(ctx, "Queue receiver stopped")

	return nil
}

func (r *Receiver) consume(ctx context.Context, callback TriggerCallback) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		result, err := r.client.BLPop(ctx, time.Second, r.Queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}

			r.logger.ErrorContext(ctx, "Failed to pop from queue", "error", err)
			continue
		}

		// BLPop returns [key, value].
		if len(result) != 2 {
			continue
		}

		var event events.TriggerFired

		err = json.Unmarshal([]byte(result[1]), &event)
		if err != nil {
			r.logger.WarnContext(ctx, "Discarding malformed trigger event", "error", err)

			continue
		}

		err = callback(ctx, event)
		if err != nil {
			r.logger.ErrorContext(ctx, "Trigger callback failed",
				"tenant_id", event.TenantID,
				"trigger_kind", event.TriggerKind,
				"error", err)
		}
	}
}
