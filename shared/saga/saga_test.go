package saga

import (
	"context"
	"testing"

	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingStep appends its calls to a shared log so tests can assert
// execution and compensation order
type recordingStep struct {
	name          string
	executeErr    error
	compensateErr error
	log           *[]string
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Execute(ctx context.Context) error {
	*s.log = append(*s.log, "execute:"+s.name)
	return s.executeErr
}

func (s *recordingStep) Compensate(ctx context.Context) error {
	*s.log = append(*s.log, "compensate:"+s.name)
	return s.compensateErr
}

func TestOrchestrator_Execute_AllStepsSucceed(t *testing.T) {
	var log []string
	orchestrator := NewOrchestrator("test", zap.NewNop())

	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "first", log: &log}))
	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "second", log: &log}))
	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "third", log: &log}))

	err := orchestrator.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"execute:first", "execute:second", "execute:third"}, log)
}

func TestOrchestrator_Execute_FailureCompensatesInReverseOrder(t *testing.T) {
	var log []string
	orchestrator := NewOrchestrator("test", zap.NewNop())

	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "first", log: &log}))
	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "second", log: &log}))
	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "third", executeErr: errors.New("boom"), log: &log}))

	err := orchestrator.Execute(context.Background())

	require.Error(t, err)
	assert.Equal(t, faults.KindProcessing, faults.KindOf(err))
	assert.Contains(t, err.Error(), "failed at step third")
	assert.Contains(t, err.Error(), "boom")

	// The failing step itself is not compensated, only completed steps are,
	// newest first
	assert.Equal(t, []string{
		"execute:first",
		"execute:second",
		"execute:third",
		"compensate:second",
		"compensate:first",
	}, log)
}

func TestOrchestrator_Execute_CompensationErrorDoesNotMaskOriginal(t *testing.T) {
	var log []string
	orchestrator := NewOrchestrator("test", zap.NewNop())

	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "first", compensateErr: errors.New("rollback failed"), log: &log}))
	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "second", executeErr: errors.New("boom"), log: &log}))

	err := orchestrator.Execute(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NotContains(t, err.Error(), "rollback failed")

	// Compensation still ran even though it errored
	assert.Contains(t, log, "compensate:first")
}

func TestOrchestrator_Execute_CompensationContinuesPastFailures(t *testing.T) {
	var log []string
	orchestrator := NewOrchestrator("test", zap.NewNop())

	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "first", log: &log}))
	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "second", compensateErr: errors.New("rollback failed"), log: &log}))
	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "third", executeErr: errors.New("boom"), log: &log}))

	_ = orchestrator.Execute(context.Background())

	// A failed compensation must not stop the remaining steps from rolling back
	assert.Equal(t, []string{
		"execute:first",
		"execute:second",
		"execute:third",
		"compensate:second",
		"compensate:first",
	}, log)
}

func TestOrchestrator_Execute_SingleUse(t *testing.T) {
	var log []string
	orchestrator := NewOrchestrator("test", zap.NewNop())
	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "only", log: &log}))

	require.NoError(t, orchestrator.Execute(context.Background()))

	err := orchestrator.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single-use")
}

func TestOrchestrator_AddStep_AfterStartFails(t *testing.T) {
	var log []string
	orchestrator := NewOrchestrator("test", zap.NewNop())
	require.NoError(t, orchestrator.AddStep(&recordingStep{name: "only", log: &log}))
	require.NoError(t, orchestrator.Execute(context.Background()))

	err := orchestrator.AddStep(&recordingStep{name: "late", log: &log})
	require.Error(t, err)
}

func TestOrchestrator_Execute_NilLoggerDefaults(t *testing.T) {
	orchestrator := NewOrchestrator("test", nil)
	require.NoError(t, orchestrator.Execute(context.Background()))
}
