package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionFollowsTotalOrder(t *testing.T) {
	require.True(t, CanTransition(PhaseInitialization, PhaseDecomposition))
	require.True(t, CanTransition(PhaseExecution, PhaseMonitoring))
	require.False(t, CanTransition(PhaseInitialization, PhaseExecution))
	require.False(t, CanTransition(PhaseCompletion, PhaseInitialization))
}

func TestCanTransitionSamePhaseIsNoOp(t *testing.T) {
	require.True(t, CanTransition(PhasePlanning, PhasePlanning))
}

func TestCanTransitionErrorRecoverySideBranch(t *testing.T) {
	require.True(t, CanTransition(PhaseExecution, PhaseErrorRecovery))
	require.True(t, CanTransition(PhaseErrorRecovery, PhaseAssignment))
	require.True(t, CanTransition(PhaseErrorRecovery, PhaseCompletion))
	require.False(t, CanTransition(PhaseErrorRecovery, PhaseMonitoring))
	require.False(t, CanTransition(PhaseCompletion, PhaseErrorRecovery))
}

func TestAgentRecomputeLoad(t *testing.T) {
	a := &Agent{MaxConcurrentTasks: 4, CurrentTasks: []string{"t1", "t2"}}
	a.RecomputeLoad()
	require.InDelta(t, 0.5, a.CurrentLoad, 1e-9)
}

func TestWorkflowProgressRecompute(t *testing.T) {
	p := &WorkflowProgress{Total: 4, Completed: 3}
	p.Recompute()
	require.InDelta(t, 75.0, p.Percentage, 1e-9)
}

func TestErrorKindExtraction(t *testing.T) {
	err := NewError(KindNotFound, "store.GetTask", "task missing", nil)
	wrapped := errors.New("wrap")
	_ = wrapped
	require.Equal(t, KindNotFound, ErrorKind(err))
	require.True(t, IsKind(err, KindNotFound))
	require.Equal(t, KindSystem, ErrorKind(errors.New("plain")))
}
