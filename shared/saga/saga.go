package saga

import (
	"context"

	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Step is a unit of saga work with an explicit inverse. Execute applies the
// step's effect; Compensate undoes it during rollback.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Orchestrator runs an ordered list of steps and compensates already-executed
// steps in reverse order when one fails. An orchestrator instance is
// single-use: it belongs to exactly one saga run and cannot be re-executed.
type Orchestrator struct {
	name     string
	steps    []Step
	executed []Step
	started  bool
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator for one saga run
func NewOrchestrator(name string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		name:   name,
		logger: logger,
	}
}

// AddStep appends a step. Steps may only be added before Execute starts.
func (o *Orchestrator) AddStep(step Step) error {
	if o.started {
		return errors.New("cannot add steps after saga execution has started")
	}
	o.steps = append(o.steps, step)
	return nil
}

// Execute runs each step in registration order. On the first failure it
// compensates every completed step in LIFO order and returns the original
// failure wrapped as a processing fault; compensation errors are logged and
// never replace the triggering error.
func (o *Orchestrator) Execute(ctx context.Context) error {
	if o.started {
		return errors.New("saga orchestrator is single-use: Execute called twice")
	}
	o.started = true

	for _, step := range o.steps {
		if err := step.Execute(ctx); err != nil {
			o.logger.Warn("saga step failed, compensating",
				zap.String("saga", o.name),
				zap.String("step", step.Name()),
				zap.Error(err),
			)
			telemetry.RecordCounter(ctx, "saga_failures_total", "Total failed saga executions", 1,
				attribute.String("saga", o.name),
				attribute.String("step", step.Name()),
			)

			o.compensate(ctx)
			return faults.Wrapf(faults.KindProcessing, err, "saga %s failed at step %s", o.name, step.Name())
		}
		o.executed = append(o.executed, step)
	}

	telemetry.RecordCounter(ctx, "saga_completions_total", "Total completed saga executions", 1,
		attribute.String("saga", o.name),
	)
	return nil
}

// compensate unwinds the executed stack in reverse order, best-effort.
func (o *Orchestrator) compensate(ctx context.Context) {
	for i := len(o.executed) - 1; i >= 0; i-- {
		step := o.executed[i]
		if err := step.Compensate(ctx); err != nil {
			cerr := faults.Wrapf(faults.KindCompensation, err, "compensation of step %s failed", step.Name())
			o.logger.Error("saga compensation failed",
				zap.String("saga", o.name),
				zap.String("step", step.Name()),
				zap.Error(cerr),
			)
			telemetry.RecordCounter(ctx, "saga_compensation_failures_total", "Total failed saga compensations", 1,
				attribute.String("saga", o.name),
				attribute.String("step", step.Name()),
			)
			continue
		}

		o.logger.Info("saga step compensated",
			zap.String("saga", o.name),
			zap.String("step", step.Name()),
		)
	}
}
