package orchestration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swarmguard/taskmanager/internal/model"
	orchstore "github.com/swarmguard/taskmanager/internal/orchestration/store"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	st, err := orchstore.Open(filepath.Join(t.TempDir(), "orch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	e, err := NewEngine(Dependencies{Store: st, Config: cfg})
	require.NoError(t, err)
	return e
}

func TestIntelligentHybridSelectsHigherScoringAgent(t *testing.T) {
	e := newTestEngine(t, Config{Strategy: StrategyIntelligentHybrid})

	a1, err := e.RegisterAgent(model.Agent{
		Name:               "a1",
		Capabilities:       []model.Capability{model.CapabilityTaskExecution},
		MaxConcurrentTasks: 10,
		CurrentTasks:       []string{"x1", "x2", "x3", "x4", "x5", "x6", "x7", "x8"}, // load 0.8
		Performance:        model.AgentPerformance{SuccessRate: 0.95},
	})
	require.NoError(t, err)
	a2, err := e.RegisterAgent(model.Agent{
		Name:               "a2",
		Capabilities:       []model.Capability{model.CapabilityTaskExecution},
		MaxConcurrentTasks: 10,
		CurrentTasks:       []string{"y1", "y2"}, // load 0.2
		Performance:        model.AgentPerformance{SuccessRate: 0.60},
	})
	require.NoError(t, err)
	a1Agent, _ := e.registry.get(a1.ID)
	a1Agent.RecomputeLoad()
	a2Agent, _ := e.registry.get(a2.ID)
	a2Agent.RecomputeLoad()

	chosen, err := e.registry.assign(StrategyIntelligentHybrid, []model.Capability{model.CapabilityTaskExecution})
	require.NoError(t, err)
	require.Equal(t, a2.ID, chosen.ID)

	// score = (1-load)*0.3 + successRate*0.4 + capabilityMatch*0.3
	// a1: (1-0.8)*0.3 + 0.95*0.4 + 1*0.3 = 0.74
	// a2: (1-0.2)*0.3 + 0.60*0.4 + 1*0.3 = 0.78
	score1 := hybridScore(a1Agent)
	score2 := hybridScore(a2Agent)
	require.InDelta(t, 0.74, score1, 0.01)
	require.InDelta(t, 0.78, score2, 0.01)
	require.Greater(t, score2, score1)
}

func TestWatchdogTimesOutAfterThreeViolations(t *testing.T) {
	e := newTestEngine(t, Config{Recovery: RecoveryConfig{AutoRetry: true, MaxRetries: 3, RetryDelay: time.Millisecond}})

	agent, err := e.RegisterAgent(model.Agent{
		Name:               "a1",
		Capabilities:       []model.Capability{model.CapabilityTaskExecution},
		MaxConcurrentTasks: 5,
	})
	require.NoError(t, err)

	task := model.AtomicTask{ID: "t1", Title: "task", Type: model.TaskTypeDevelopment, Priority: model.PriorityHigh}
	e.EnqueueScheduleEntry(model.ScheduleEntry{
		TaskID:      "t1",
		WorkflowID:  "wf1",
		Priority:    model.PriorityHigh,
		ScheduledAt: now(),
		Constraints: model.ScheduleConstraints{RequiredCapabilities: []model.Capability{model.CapabilityTaskExecution}, MaxRetries: 3, TimeoutMs: 100},
	}, task)

	e.RunSchedulingTick(context.Background())

	var assignmentID string
	e.mu.RLock()
	for id, a := range e.assignments {
		if a.AgentID == agent.ID {
			assignmentID = id
		}
	}
	e.mu.RUnlock()
	require.NotEmpty(t, assignmentID)

	execCtx, err := e.StartExecution(assignmentID)
	require.NoError(t, err)
	execCtx.Watchdog.TimeoutMs = 1 // force immediate violations

	e.mu.Lock()
	e.executions[execCtx.ID].Watchdog.TimeoutMs = 1
	e.executions[execCtx.ID].Watchdog.LastCheck = now().Add(-time.Second)
	e.mu.Unlock()

	e.RunWatchdogTick() // violation 1
	e.mu.Lock()
	e.executions[execCtx.ID].Watchdog.LastCheck = now().Add(-time.Second)
	e.mu.Unlock()
	e.RunWatchdogTick() // violation 2
	e.mu.Lock()
	e.executions[execCtx.ID].Watchdog.LastCheck = now().Add(-time.Second)
	e.mu.Unlock()
	e.RunWatchdogTick() // violation 3 -> timeout

	e.mu.RLock()
	finalCtx := e.executions[execCtx.ID]
	e.mu.RUnlock()
	require.Equal(t, model.ExecutionTimeout, finalCtx.Status)
	require.Equal(t, 3, finalCtx.Watchdog.Violations)

	agentAfter, ok := e.registry.get(agent.ID)
	require.True(t, ok)
	require.NotContains(t, agentAfter.CurrentTasks, "t1")

	time.Sleep(10 * time.Millisecond)
	e.mu.RLock()
	var retried bool
	for _, a := range e.assignments {
		if a.TaskID == "t1" && a.Status == model.AssignmentPending {
			retried = true
		}
	}
	e.mu.RUnlock()
	require.True(t, retried, "expected a new pending assignment for the retried task")
}

func TestCompleteExecutionUpdatesAverageTaskTime(t *testing.T) {
	e := newTestEngine(t, Config{})

	agent, err := e.RegisterAgent(model.Agent{
		Name:               "a1",
		Capabilities:       []model.Capability{model.CapabilityTaskExecution},
		MaxConcurrentTasks: 5,
	})
	require.NoError(t, err)

	task := model.AtomicTask{ID: "t1", Title: "task", Type: model.TaskTypeDevelopment, Priority: model.PriorityHigh}
	e.EnqueueScheduleEntry(model.ScheduleEntry{
		TaskID:      "t1",
		WorkflowID:  "wf1",
		Priority:    model.PriorityHigh,
		ScheduledAt: now(),
		Constraints: model.ScheduleConstraints{RequiredCapabilities: []model.Capability{model.CapabilityTaskExecution}},
	}, task)
	e.RunSchedulingTick(context.Background())

	var assignmentID string
	e.mu.RLock()
	for id, a := range e.assignments {
		if a.AgentID == agent.ID {
			assignmentID = id
		}
	}
	e.mu.RUnlock()
	require.NotEmpty(t, assignmentID)

	execCtx, err := e.StartExecution(assignmentID)
	require.NoError(t, err)

	e.mu.Lock()
	started := now().Add(-time.Minute)
	e.assignments[assignmentID].StartedAt = &started
	e.mu.Unlock()

	require.NoError(t, e.CompleteExecution(execCtx.ID, true))

	agentAfter, ok := e.registry.get(agent.ID)
	require.True(t, ok)
	require.InDelta(t, time.Minute, agentAfter.Performance.AverageTaskTime, float64(time.Second))
}

func TestCancelExecutionRevertsAssignmentToPending(t *testing.T) {
	e := newTestEngine(t, Config{})

	agent, err := e.RegisterAgent(model.Agent{
		Name:               "a1",
		Capabilities:       []model.Capability{model.CapabilityTaskExecution},
		MaxConcurrentTasks: 5,
	})
	require.NoError(t, err)

	task := model.AtomicTask{ID: "t1", Title: "task", Type: model.TaskTypeDevelopment, Priority: model.PriorityHigh}
	e.EnqueueScheduleEntry(model.ScheduleEntry{
		TaskID:      "t1",
		WorkflowID:  "wf1",
		Priority:    model.PriorityHigh,
		ScheduledAt: now(),
		Constraints: model.ScheduleConstraints{RequiredCapabilities: []model.Capability{model.CapabilityTaskExecution}, MaxRetries: 3},
	}, task)
	e.RunSchedulingTick(context.Background())

	var assignmentID string
	e.mu.RLock()
	for id, a := range e.assignments {
		if a.AgentID == agent.ID {
			assignmentID = id
		}
	}
	e.mu.RUnlock()
	require.NotEmpty(t, assignmentID)

	execCtx, err := e.StartExecution(assignmentID)
	require.NoError(t, err)

	cancelCtx, ok := e.ExecutionCancelSignal(execCtx.ID)
	require.True(t, ok)
	require.NoError(t, cancelCtx.Err())

	require.NoError(t, e.CancelExecution(execCtx.ID, "test cancel"))
	require.Error(t, cancelCtx.Err(), "the dispatcher-observable context must be cancelled")

	e.mu.RLock()
	finalCtx := e.executions[execCtx.ID]
	finalAssignment := e.assignments[assignmentID]
	e.mu.RUnlock()
	require.Equal(t, model.ExecutionCancelled, finalCtx.Status)
	require.Equal(t, model.AssignmentPending, finalAssignment.Status)
}

func TestCancelAllCancelsRunningExecutions(t *testing.T) {
	e := newTestEngine(t, Config{})

	agent, err := e.RegisterAgent(model.Agent{
		Name:               "a1",
		Capabilities:       []model.Capability{model.CapabilityTaskExecution},
		MaxConcurrentTasks: 5,
	})
	require.NoError(t, err)

	task := model.AtomicTask{ID: "t1", Title: "task", Type: model.TaskTypeDevelopment, Priority: model.PriorityHigh}
	e.EnqueueScheduleEntry(model.ScheduleEntry{
		TaskID:      "t1",
		WorkflowID:  "wf1",
		Priority:    model.PriorityHigh,
		ScheduledAt: now(),
		Constraints: model.ScheduleConstraints{RequiredCapabilities: []model.Capability{model.CapabilityTaskExecution}},
	}, task)
	e.RunSchedulingTick(context.Background())

	var assignmentID string
	e.mu.RLock()
	for id, a := range e.assignments {
		if a.AgentID == agent.ID {
			assignmentID = id
		}
	}
	e.mu.RUnlock()
	execCtx, err := e.StartExecution(assignmentID)
	require.NoError(t, err)

	require.Equal(t, 1, e.CancelAll("shutdown"))

	e.mu.RLock()
	finalCtx := e.executions[execCtx.ID]
	e.mu.RUnlock()
	require.Equal(t, model.ExecutionCancelled, finalCtx.Status)
}

func TestUpdateWorkflowPhaseEnforcesStateMachine(t *testing.T) {
	e := newTestEngine(t, Config{})
	wf := e.CreateWorkflow("p1", "s1", []string{"t1"}, model.WorkflowMetadata{Priority: model.PriorityMedium})

	var events []model.PhaseEvent
	e.OnPhaseTransition(func(ev model.PhaseEvent) { events = append(events, ev) })

	require.NoError(t, e.UpdateWorkflowPhase(wf.ID, model.PhaseDecomposition))
	require.Error(t, e.UpdateWorkflowPhase(wf.ID, model.PhaseCompletion))
	require.Len(t, events, 1)

	require.NoError(t, e.UpdateWorkflowPhase(wf.ID, model.PhaseDecomposition))
	require.Len(t, events, 1, "transition to the current phase must be a no-op and emit no event")
}

func TestCleanupRemovesOldCompletedWorkflows(t *testing.T) {
	e := newTestEngine(t, Config{WorkflowRetention: time.Millisecond})
	wf := e.CreateWorkflow("p1", "s1", nil, model.WorkflowMetadata{})
	require.NoError(t, e.UpdateWorkflowPhase(wf.ID, model.PhaseDecomposition))
	require.NoError(t, e.UpdateWorkflowPhase(wf.ID, model.PhasePlanning))
	require.NoError(t, e.UpdateWorkflowPhase(wf.ID, model.PhaseAssignment))
	require.NoError(t, e.UpdateWorkflowPhase(wf.ID, model.PhaseExecution))
	require.NoError(t, e.UpdateWorkflowPhase(wf.ID, model.PhaseMonitoring))
	require.NoError(t, e.UpdateWorkflowPhase(wf.ID, model.PhaseValidation))
	require.NoError(t, e.UpdateWorkflowPhase(wf.ID, model.PhaseCompletion))

	time.Sleep(5 * time.Millisecond)
	removed := e.RunCleanupTick()
	require.Equal(t, 1, removed)

	e.mu.RLock()
	_, exists := e.workflows[wf.ID]
	e.mu.RUnlock()
	require.False(t, exists)
}
