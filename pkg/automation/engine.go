package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/donorflow/donorflow/pkg/eventbus"
	"github.com/donorflow/donorflow/pkg/events"
	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/otelhelper"
	"github.com/donorflow/donorflow/pkg/persistence"
	"github.com/donorflow/donorflow/pkg/registry"
)

// Engine is the automation facade: Fire starts zero or more runs for a
// business event, Sweep resumes durably suspended runs whose time has come.
// All dependencies are injected; the engine holds no ambient state.
type Engine struct {
	persistence persistence.Persistence
	matcher     *TriggerMatcher
	executor    *Executor
	bus         eventbus.EventBus
	tracer      trace.Tracer
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewEngine wires the matcher and executor over the given backends. bus and
// tracer may be nil.
func NewEngine(p persistence.Persistence, reg *registry.Registry, bus eventbus.EventBus, tracer trace.Tracer, logger *slog.Logger) *Engine {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("donorflow")
	}

	logger = logger.With("module", "automation_engine")

	return &Engine{
		persistence: p,
		matcher:     NewTriggerMatcher(p.AutomationRepository(), logger),
		executor:    NewExecutor(p.ExecutionRepository(), reg, bus, logger),
		bus:         bus,
		tracer:      tracer,
		logger:      logger,
	}
}

// Fire matches the event against the tenant's automations, creates one
// execution per match, and launches each run asynchronously. It returns the
// created execution ids as soon as the runs are launched, not when they
// finish.
func (e *Engine) Fire(ctx context.Context, tenantID string, kind models.TriggerKind, triggerContext map[string]any) ([]string, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.fire",
		attribute.String(otelhelper.TenantIDKey, tenantID),
		attribute.String(otelhelper.TriggerKindKey, string(kind)),
	)
	defer span.End()

	if !kind.IsValid() {
		err := fmt.Errorf("unknown trigger kind: %s", kind)
		otelhelper.SetError(span, err)

		return nil, err
	}

	matched, err := e.matcher.Match(ctx, tenantID, kind, triggerContext)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	executionIDs := make([]string, 0, len(matched))

	for _, automation := range matched {
		execution, err := e.startExecution(ctx, automation, triggerContext)
		if err != nil {
			otelhelper.SetError(span, err)

			return executionIDs, err
		}

		executionIDs = append(executionIDs, execution.ID)
	}

	return executionIDs, nil
}

// FireAutomation starts one run of a specific automation, bypassing trigger
// matching. This backs the operator's manual-run endpoint; the automation
// must still be active.
func (e *Engine) FireAutomation(ctx context.Context, automationID string, triggerContext map[string]any) (string, error) {
	automation, err := e.persistence.AutomationRepository().GetByID(ctx, automationID)
	if err != nil {
		return "", err
	}

	if !automation.Active {
		return "", fmt.Errorf("automation %s is not active", automationID)
	}

	execution, err := e.startExecution(ctx, automation, triggerContext)
	if err != nil {
		return "", err
	}

	return execution.ID, nil
}

// Sweep claims every waiting execution whose resume time has elapsed and
// hands it back to the executor. The claim is a conditional status
// transition, so overlapping sweeps cannot resume the same execution twice.
func (e *Engine) Sweep(ctx context.Context, now time.Time) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.sweep")
	defer span.End()

	due, err := e.persistence.ExecutionRepository().ListDue(ctx, now)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to list due executions: %w", err)
	}

	for _, execution := range due {
		claimed, err := e.persistence.ExecutionRepository().Claim(ctx, execution.ID, now)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to claim due execution", "execution_id", execution.ID, "error", err)

			continue
		}

		if !claimed {
			continue
		}

		execution.Status = models.ExecutionStatusRunning
		execution.ResumeAt = nil

		automation, err := e.persistence.AutomationRepository().GetByID(ctx, execution.AutomationID)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to load automation for resumed execution",
				"execution_id", execution.ID, "automation_id", execution.AutomationID, "error", err)

			continue
		}

		e.publishResumed(ctx, execution)
		e.launch(ctx, automation, execution)
	}

	return nil
}

// Wait blocks until all launched runs have finished. Intended for shutdown
// and tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) startExecution(ctx context.Context, automation *models.Automation, triggerContext map[string]any) (*models.Execution, error) {
	contextData := make(map[string]any, len(triggerContext))
	for k, v := range triggerContext {
		contextData[k] = v
	}

	execution := &models.Execution{
		ID:           uuid.New().String(),
		AutomationID: automation.ID,
		TenantID:     automation.TenantID,
		SubjectID:    stringValue(triggerContext, "subject_id"),
		Status:       models.ExecutionStatusRunning,
		ContextData:  contextData,
		CreatedAt:    time.Now().UTC(),
	}

	err := e.persistence.ExecutionRepository().Create(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	if e.bus != nil {
		publishErr := e.bus.Publish(ctx, events.ExecutionTopic, execution.ID, events.ExecutionStarted{
			BaseEvent: events.BaseEvent{
				ID:        e.bus.GenerateID(),
				Type:      events.ExecutionStartedEvent,
				Timestamp: time.Now().UTC(),
				TenantID:  execution.TenantID,
			},
			ExecutionID:  execution.ID,
			AutomationID: automation.ID,
			SubjectID:    execution.SubjectID,
		})
		if publishErr != nil {
			e.logger.WarnContext(ctx, "Failed to publish execution started event",
				"execution_id", execution.ID, "error", publishErr)
		}
	}

	e.launch(ctx, automation, execution)

	return execution, nil
}

// launch runs one execution in its own goroutine, detached from the caller's
// cancellation. A run failure is persisted by the executor; a panic is
// persisted here before the goroutine exits.
func (e *Engine) launch(ctx context.Context, automation *models.Automation, execution *models.Execution) {
	runCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()

		defer func() {
			if r := recover(); r != nil {
				e.executor.fail(runCtx, execution, execution.CurrentStepIndex, fmt.Errorf("panic: %v", r))
			}
		}()

		ctx, span := otelhelper.StartSpan(runCtx, e.tracer, "engine.run",
			attribute.String(otelhelper.ExecutionIDKey, execution.ID),
			attribute.String(otelhelper.AutomationIDKey, automation.ID),
		)
		defer span.End()

		err := e.executor.Run(ctx, automation, execution)
		if err != nil {
			otelhelper.SetError(span, err)
			e.logger.ErrorContext(ctx, "Execution failed",
				"execution_id", execution.ID,
				"automation_id", automation.ID,
				"error", err)
		}
	}()
}

func (e *Engine) publishResumed(ctx context.Context, execution *models.Execution) {
	if e.bus == nil {
		return
	}

	err := e.bus.Publish(ctx, events.ExecutionTopic, execution.ID, events.ExecutionResumed{
		BaseEvent: events.BaseEvent{
			ID:        e.bus.GenerateID(),
			Type:      events.ExecutionResumedEvent,
			Timestamp: time.Now().UTC(),
			TenantID:  execution.TenantID,
		},
		ExecutionID: execution.ID,
		FromStep:    execution.NextStep(),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish execution resumed event",
			"execution_id", execution.ID, "error", err)
	}
}
