package automation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/donorflow/donorflow/pkg/eventbus"
	"github.com/donorflow/donorflow/pkg/events"
	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/persistence"
	"github.com/donorflow/donorflow/pkg/registry"
)

// ShortDelayThreshold separates in-process waits from durable suspensions.
// Delays up to this bound are awaited inside the run goroutine; anything
// longer persists the execution as waiting and returns control to the caller.
const ShortDelayThreshold = 5 * time.Minute

// contextDelayServedKey marks the step whose pre-delay already elapsed before
// a suspension, so a resumed run does not wait for it twice.
const contextDelayServedKey = "delay_served"

const contextStepResultsKey = "step_results"

// Executor drives one execution forward: it applies each step's delay
// policy, dispatches the action, and persists progress after every step.
type Executor struct {
	executions persistence.ExecutionRepository
	registry   *registry.Registry
	bus        eventbus.EventBus
	logger     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a new run executor. bus may be nil when lifecycle
// events are not wanted.
func NewExecutor(executions persistence.ExecutionRepository, reg *registry.Registry, bus eventbus.EventBus, logger *slog.Logger) *Executor {
	return &Executor{
		executions: executions,
		registry:   reg,
		bus:        bus,
		logger:     logger.With("module", "run_executor"),
		now:        func() time.Time { return time.Now().UTC() },
		sleep:      sleepContext,
	}
}

// Run executes the automation's remaining steps against the execution,
// starting at the stored resume cursor. It returns nil both on completion and
// on a durable suspension; a fatal step error is persisted to the execution
// and returned.
func (ex *Executor) Run(ctx context.Context, automation *models.Automation, execution *models.Execution) error {
	logger := ex.logger.With(
		"execution_id", execution.ID,
		"automation_id", automation.ID,
		"tenant_id", execution.TenantID,
	)

	runCtx := models.RunContext{
		ExecutionID:  execution.ID,
		AutomationID: automation.ID,
		TenantID:     execution.TenantID,
		TenantSlug:   stringValue(execution.ContextData, "tenant_slug"),
		SubjectID:    execution.SubjectID,
		TriggerKind:  automation.TriggerKind,
		TriggerData:  execution.ContextData,
	}

	steps := automation.Steps

	for index := execution.NextStep(); index < len(steps); index++ {
		step := steps[index]

		execution.CurrentStepIndex = step.Order
		setContextValue(execution, models.ContextNextStepKey, step.Order)

		err := ex.executions.Update(ctx, execution)
		if err != nil {
			return ex.fail(ctx, execution, step.Order, fmt.Errorf("failed to persist step cursor: %w", err))
		}

		suspended, err := ex.applyDelay(ctx, execution, step, logger)
		if err != nil {
			return ex.fail(ctx, execution, step.Order, err)
		}

		if suspended {
			return nil
		}

		result, err := ex.dispatch(ctx, step, runCtx, logger)
		if err != nil {
			return ex.fail(ctx, execution, step.Order, err)
		}

		recordStepResult(execution, step.Order, result)

		logger.InfoContext(ctx, "Step finished",
			"step", step.Order,
			"action_kind", step.ActionKind,
			"ok", result.OK,
			"skipped", result.Skipped)
	}

	return ex.complete(ctx, execution, logger)
}

// applyDelay enforces the step's pre-delay. A short delay blocks in-process;
// a long delay persists the execution as waiting and reports suspended=true
// without executing the step.
func (ex *Executor) applyDelay(ctx context.Context, execution *models.Execution, step models.Step, logger *slog.Logger) (bool, error) {
	delay := time.Duration(step.DelayMinutes) * time.Minute
	if delay <= 0 {
		return false, nil
	}

	if delayServed(execution) == step.Order {
		setContextValue(execution, contextDelayServedKey, nil)

		return false, nil
	}

	if delay <= ShortDelayThreshold {
		logger.DebugContext(ctx, "Waiting in process", "step", step.Order, "delay", delay)

		err := ex.sleep(ctx, delay)
		if err != nil {
			return false, fmt.Errorf("wait interrupted before step %d: %w", step.Order, err)
		}

		return false, nil
	}

	resumeAt := ex.now().Add(delay)

	execution.Status = models.ExecutionStatusWaiting
	execution.ResumeAt = &resumeAt
	setContextValue(execution, models.ContextNextStepKey, step.Order)
	setContextValue(execution, contextDelayServedKey, step.Order)

	err := ex.executions.Update(ctx, execution)
	if err != nil {
		return false, fmt.Errorf("failed to persist suspension: %w", err)
	}

	logger.InfoContext(ctx, "Execution suspended", "step", step.Order, "resume_at", resumeAt)

	ex.publish(ctx, execution.ID, events.ExecutionSuspended{
		BaseEvent:   ex.baseEvent(events.ExecutionSuspendedEvent, execution.TenantID),
		ExecutionID: execution.ID,
		NextStep:    step.Order,
		ResumeAt:    resumeAt,
	})

	return true, nil
}

func (ex *Executor) dispatch(ctx context.Context, step models.Step, runCtx models.RunContext, logger *slog.Logger) (models.ActionResult, error) {
	action, err := ex.registry.CreateAction(step.ActionKind, step.Config)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("failed to create action for step %d: %w", step.Order, err)
	}

	result, err := action.Execute(ctx, runCtx, logger)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("step %d (%s) failed: %w", step.Order, step.ActionKind, err)
	}

	return result, nil
}

func (ex *Executor) complete(ctx context.Context, execution *models.Execution, logger *slog.Logger) error {
	now := ex.now()

	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &now
	execution.ResumeAt = nil
	setContextValue(execution, models.ContextNextStepKey, nil)
	setContextValue(execution, contextDelayServedKey, nil)

	err := ex.executions.Update(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to persist completion: %w", err)
	}

	logger.InfoContext(ctx, "Execution completed")

	ex.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:   ex.baseEvent(events.ExecutionCompletedEvent, execution.TenantID),
		ExecutionID: execution.ID,
		Duration:    now.Sub(execution.CreatedAt),
	})

	return nil
}

// fail marks the execution terminally failed. The failure is persisted before
// it is surfaced, so a dropped goroutine error is still visible in the store.
func (ex *Executor) fail(ctx context.Context, execution *models.Execution, stepIndex int, cause error) error {
	now := ex.now()

	execution.Status = models.ExecutionStatusFailed
	execution.ErrorMessage = cause.Error()
	execution.CompletedAt = &now
	execution.ResumeAt = nil

	err := ex.executions.Update(ctx, execution)
	if err != nil {
		ex.logger.ErrorContext(ctx, "Failed to persist execution failure",
			"execution_id", execution.ID, "error", err, "cause", cause)
	}

	ex.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:   ex.baseEvent(events.ExecutionFailedEvent, execution.TenantID),
		ExecutionID: execution.ID,
		StepIndex:   stepIndex,
		Error:       cause.Error(),
	})

	return cause
}

func (ex *Executor) publish(ctx context.Context, key string, event events.Event) {
	if ex.bus == nil {
		return
	}

	err := ex.bus.Publish(ctx, events.ExecutionTopic, key, event)
	if err != nil {
		ex.logger.WarnContext(ctx, "Failed to publish lifecycle event", "event_type", event.GetType(), "error", err)
	}
}

func (ex *Executor) baseEvent(eventType events.EventType, tenantID string) events.BaseEvent {
	id := ""
	if ex.bus != nil {
		id = ex.bus.GenerateID()
	}

	return events.BaseEvent{
		ID:        id,
		Type:      eventType,
		Timestamp: ex.now(),
		TenantID:  tenantID,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func setContextValue(execution *models.Execution, key string, value any) {
	if execution.ContextData == nil {
		if value == nil {
			return
		}

		execution.ContextData = make(map[string]any)
	}

	if value == nil {
		delete(execution.ContextData, key)

		return
	}

	execution.ContextData[key] = value
}

func delayServed(execution *models.Execution) int {
	if execution.ContextData == nil {
		return -1
	}

	switch v := execution.ContextData[contextDelayServedKey].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return -1
	}
}

func recordStepResult(execution *models.Execution, order int, result models.ActionResult) {
	if execution.ContextData == nil {
		execution.ContextData = make(map[string]any)
	}

	results, ok := execution.ContextData[contextStepResultsKey].(map[string]any)
	if !ok {
		results = make(map[string]any)
		execution.ContextData[contextStepResultsKey] = results
	}

	results[strconv.Itoa(order)] = result
}

func stringValue(data map[string]any, key string) string {
	if data == nil {
		return ""
	}

	s, _ := data[key].(string)

	return s
}
