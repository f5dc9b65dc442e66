package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/trace"

	"github.com/donorflow/donorflow/pkg/automation"
	"github.com/donorflow/donorflow/pkg/eventbus"
	"github.com/donorflow/donorflow/pkg/events"
	"github.com/donorflow/donorflow/pkg/persistence"
	"github.com/donorflow/donorflow/pkg/receivers/queue"
	"github.com/donorflow/donorflow/pkg/registry"
)

// WorkerManager consumes trigger events from the bus, and optionally from a
// Redis queue, and feeds them to the automation engine.
type WorkerManager struct {
	id         string
	logger     *slog.Logger
	engine     *automation.Engine
	eventBus   eventbus.EventBus
	redisURL   string
	redisQueue string
}

func NewWorkerManager(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	registry *registry.Registry,
	tracer trace.Tracer,
	redisURL string,
	redisQueue string,
) *WorkerManager {
	return &WorkerManager{
		id:         id,
		logger:     logger.With("module", "donorflow-worker", "worker_id", id),
		engine:     automation.NewEngine(p, registry, eventBus, tracer, logger),
		eventBus:   eventBus,
		redisURL:   redisURL,
		redisQueue: redisQueue,
	}
}

// Start subscribes to the trigger topic and blocks until a shutdown signal
// arrives. In-flight runs are waited for before returning.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	w.eventBus.Handle(events.TriggerFiredEvent, w.handleTriggerFired)

	err := w.eventBus.Subscribe(ctx, events.TriggerTopic)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to trigger topic", "error", err)

		return err
	}

	var receiver *queue.Receiver

	if w.redisURL != "" {
		receiver, err = queue.NewReceiver(w.redisURL, w.redisQueue, w.logger)
		if err != nil {
			return err
		}

		err = receiver.Start(ctx, func(ctx context.Context, event events.TriggerFired) error {
			return w.fire(ctx, event)
		})
		if err != nil {
			return err
		}
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	if receiver != nil {
		err := receiver.Stop(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to stop queue receiver", "error", err)
		}
	}

	w.engine.Wait()

	return nil
}

func (w *WorkerManager) handleTriggerFired(ctx context.Context, event any) error {
	triggerEvent, ok := event.(*events.TriggerFired)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for TriggerFired")

		return nil
	}

	return w.fire(ctx, *triggerEvent)
}

func (w *WorkerManager) fire(ctx context.Context, event events.TriggerFired) error {
	logger := w.logger.With(
		"tenant_id", event.TenantID,
		"trigger_kind", event.TriggerKind,
		"event_id", event.ID,
	)
	logger.InfoContext(ctx, "Processing trigger event")

	executionIDs, err := w.engine.Fire(ctx, event.TenantID, event.TriggerKind, event.Context)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to fire trigger", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Trigger processed", "executions_started", len(executionIDs))

	return nil
}
