package rdd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swarmguard/taskmanager/internal/atomic"
	"github.com/swarmguard/taskmanager/internal/lm"
	"github.com/swarmguard/taskmanager/internal/model"
	"github.com/swarmguard/taskmanager/internal/prompts"
)

type scriptedCapability struct {
	splitResponse string
}

func (s *scriptedCapability) Invoke(ctx context.Context, logicalTaskName, prompt, systemPrompt string, temperature float64, format lm.Format) (string, error) {
	if logicalTaskName == "decomposition" {
		return s.splitResponse, nil
	}
	return "single responsibility\n- low complexity", nil
}

func newTestEngine(t *testing.T, splitResponse string) *Engine {
	t.Helper()
	promptSvc, err := prompts.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = promptSvc.Close() })

	cap := &scriptedCapability{splitResponse: splitResponse}
	detector, err := atomic.New(context.Background(), cap, promptSvc)
	require.NoError(t, err)

	return New(detector, cap, promptSvc, DefaultConfig)
}

func TestDecomposeComplexTaskSplitsIntoAtomicSubTasks(t *testing.T) {
	splitResponse := `[
		{"title":"Implement user authentication","description":"login/logout flow","type":"development","priority":"high","estimatedHours":0.2,"acceptanceCriteria":["user can log in"]},
		{"title":"Implement user profile editing","description":"edit profile fields","type":"development","priority":"medium","estimatedHours":0.2,"acceptanceCriteria":["user can edit profile"]}
	]`
	e := newTestEngine(t, splitResponse)

	task := model.AtomicTask{
		ID:                 "T0001",
		Title:              "Implement user management system",
		Description:        "Implement user management system",
		EstimatedHours:     12,
		AcceptanceCriteria: []string{"users can be managed"},
	}
	pc := atomic.ProjectContext{Languages: []string{"typescript"}, Frameworks: []string{"react"}}

	result := e.Decompose(context.Background(), task, pc, 0)
	require.True(t, result.Success)
	require.False(t, result.IsAtomic)
	require.Len(t, result.SubTasks, 2)
	require.Equal(t, "T0001-01", result.SubTasks[0].ID)
	require.Equal(t, "Implement user authentication", result.SubTasks[0].Title)
	require.Equal(t, "T0001-02", result.SubTasks[1].ID)

	for _, st := range result.SubTasks {
		require.True(t, st.IsAtomicByHours())
	}
}

func TestDecomposeForcesAtomicAtMaxDepth(t *testing.T) {
	e := newTestEngine(t, `[{"title":"x","estimatedHours":1,"acceptanceCriteria":["a"]}]`)

	task := model.AtomicTask{ID: "T0002", Title: "Deep task", EstimatedHours: 8, AcceptanceCriteria: []string{"a"}}
	result := e.Decompose(context.Background(), task, atomic.ProjectContext{}, DefaultConfig.MaxDepth)
	require.True(t, result.Success)
	require.True(t, result.IsAtomic)
	require.Empty(t, result.SubTasks)
}

func TestDecomposeAlreadyAtomicTaskReturnsUnsplit(t *testing.T) {
	e := newTestEngine(t, "[]")

	task := model.AtomicTask{
		ID:                 "T0003",
		Title:              "Add submit button",
		Description:        "Add a submit button to the form",
		EstimatedHours:     0.2,
		AcceptanceCriteria: []string{"button submits the form"},
	}

	result := e.Decompose(context.Background(), task, atomic.ProjectContext{}, 0)
	require.True(t, result.Success)
	require.True(t, result.IsAtomic)
	require.Equal(t, task.ID, result.OriginalTask.ID)
}

func TestDecomposeDegradesToAtomicOnMalformedSplitResponse(t *testing.T) {
	e := newTestEngine(t, "not json")

	task := model.AtomicTask{
		ID:                 "T0004",
		Title:              "Implement billing and invoicing",
		EstimatedHours:     10,
		AcceptanceCriteria: []string{"a", "b"},
	}

	result := e.Decompose(context.Background(), task, atomic.ProjectContext{}, 0)
	require.True(t, result.Success)
	require.True(t, result.IsAtomic)
	require.Empty(t, result.SubTasks)
}

func TestDecomposeWithoutCapabilityDegradesToAtomic(t *testing.T) {
	promptSvc, err := prompts.New(t.TempDir())
	require.NoError(t, err)
	defer promptSvc.Close()

	detector, err := atomic.New(context.Background(), nil, promptSvc)
	require.NoError(t, err)
	e := New(detector, nil, promptSvc, DefaultConfig)

	task := model.AtomicTask{
		ID:                 "T0005",
		Title:              "Implement payments and refunds",
		EstimatedHours:     6,
		AcceptanceCriteria: []string{"a", "b"},
	}

	result := e.Decompose(context.Background(), task, atomic.ProjectContext{}, 0)
	require.True(t, result.Success)
	require.True(t, result.IsAtomic)
}
