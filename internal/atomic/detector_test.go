package atomic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swarmguard/taskmanager/internal/lm"
	"github.com/swarmguard/taskmanager/internal/model"
	"github.com/swarmguard/taskmanager/internal/prompts"
)

type fakeCapability struct {
	response string
	err      error
}

func (f *fakeCapability) Invoke(ctx context.Context, logicalTaskName, prompt, systemPrompt string, temperature float64, format lm.Format) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestDetectAtomicTaskPassesHeuristic(t *testing.T) {
	promptSvc, err := prompts.New(t.TempDir())
	require.NoError(t, err)
	defer promptSvc.Close()

	cap := &fakeCapability{response: "single action, single file\n- low complexity"}
	d, err := New(context.Background(), cap, promptSvc)
	require.NoError(t, err)

	task := &model.AtomicTask{
		ID:                 "t1",
		Title:              "Add login button",
		Description:        "Add a login button to the navbar",
		EstimatedHours:     0.2,
		AcceptanceCriteria: []string{"button renders and navigates to /login"},
	}

	v, err := d.Detect(context.Background(), task, ProjectContext{Languages: []string{"go"}})
	require.NoError(t, err)
	require.True(t, v.IsAtomic)
	require.Empty(t, v.Violations)
	require.NotEmpty(t, v.Reasoning)
}

func TestDetectRejectsConjunctionToken(t *testing.T) {
	promptSvc, err := prompts.New(t.TempDir())
	require.NoError(t, err)
	defer promptSvc.Close()

	cap := &fakeCapability{response: "compound task"}
	d, err := New(context.Background(), cap, promptSvc)
	require.NoError(t, err)

	task := &model.AtomicTask{
		ID:                 "t2",
		Title:              "Implement login and logout",
		EstimatedHours:     0.2,
		AcceptanceCriteria: []string{"one"},
	}

	v, err := d.Detect(context.Background(), task, ProjectContext{})
	require.NoError(t, err)
	require.False(t, v.IsAtomic)
	require.NotEmpty(t, v.Violations)
}

func TestDetectRejectsMultipleCriteriaAndOverHours(t *testing.T) {
	promptSvc, err := prompts.New(t.TempDir())
	require.NoError(t, err)
	defer promptSvc.Close()

	d, err := New(context.Background(), nil, promptSvc)
	require.NoError(t, err)

	task := &model.AtomicTask{
		ID:                 "t3",
		Title:              "Implement user management",
		EstimatedHours:     12,
		AcceptanceCriteria: []string{"one", "two"},
	}

	v, err := d.Detect(context.Background(), task, ProjectContext{})
	require.NoError(t, err)
	require.False(t, v.IsAtomic)
	require.Len(t, v.Violations, 2)
	require.NotEmpty(t, v.Reasoning) // synthesized since capability is nil
}
