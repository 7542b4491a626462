package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swarmguard/taskmanager/internal/graph"
	"github.com/swarmguard/taskmanager/internal/model"
)

func atomicTask(id string, priority model.Priority, deps ...string) model.AtomicTask {
	return model.AtomicTask{
		ID:             id,
		ProjectID:      "p1",
		Title:          "task " + id,
		Type:           model.TaskTypeDevelopment,
		Priority:       priority,
		Status:         model.TaskStatusPending,
		EstimatedHours: 1,
		Dependencies:   deps,
	}
}

func TestGenerateScheduleRejectsEmptyTaskList(t *testing.T) {
	s := New(Config{})
	_, err := s.GenerateSchedule(context.Background(), nil, graph.New(), "p1")
	require.ErrorAs(t, err, &EmptyScheduleError{})
}

func TestGenerateScheduleRejectsInvalidTask(t *testing.T) {
	s := New(Config{})
	g := graph.New()
	g.AddTask("t1", 1)
	tasks := []model.AtomicTask{{ID: "t1"}} // missing type/priority
	_, err := s.GenerateSchedule(context.Background(), tasks, g, "p1")
	var invalid InvalidTaskError
	require.ErrorAs(t, err, &invalid)
}

func TestGenerateScheduleLinearChainProducesSequentialBatches(t *testing.T) {
	g := graph.New()
	tasks := make([]model.AtomicTask, 100)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("t%03d", i)
		tasks[i] = atomicTask(id, model.PriorityMedium)
		g.AddTask(id, 1)
		if i > 0 {
			prev := fmt.Sprintf("t%03d", i-1)
			require.NoError(t, g.AddDependency(prev, id, graph.EdgeBlocks, 1, true))
			tasks[i].Dependencies = []string{prev}
		}
	}

	s := New(Config{MaxConcurrentTasks: 10})
	sched, err := s.GenerateSchedule(context.Background(), tasks, g, "p1")
	require.NoError(t, err)
	require.Len(t, sched.ExecutionBatches, 100)
	for _, b := range sched.ExecutionBatches {
		require.Len(t, b.TaskIDs, 1)
	}
}

func TestGenerateScheduleStarProducesBoundedBatches(t *testing.T) {
	g := graph.New()
	tasks := make([]model.AtomicTask, 0, 100)
	root := atomicTask("root", model.PriorityHigh)
	g.AddTask("root", 1)
	tasks = append(tasks, root)
	for i := 0; i < 99; i++ {
		id := fmt.Sprintf("child%02d", i)
		g.AddTask(id, 1)
		require.NoError(t, g.AddDependency("root", id, graph.EdgeBlocks, 1, true))
		tasks = append(tasks, atomicTask(id, model.PriorityMedium, "root"))
	}

	s := New(Config{MaxConcurrentTasks: 10})
	sched, err := s.GenerateSchedule(context.Background(), tasks, g, "p1")
	require.NoError(t, err)
	require.Equal(t, []string{"root"}, sched.ExecutionBatches[0].TaskIDs)
	for _, b := range sched.ExecutionBatches[1:] {
		require.LessOrEqual(t, len(b.TaskIDs), 10)
	}
	total := 0
	for _, b := range sched.ExecutionBatches {
		total += len(b.TaskIDs)
	}
	require.Equal(t, 100, total)
}

func TestGenerateSchedulePriorityFirstOrdersCriticalBeforeMedium(t *testing.T) {
	g := graph.New()
	g.AddTask("T001", 1)
	g.AddTask("T002", 1)
	g.AddTask("T003", 1)
	require.NoError(t, g.AddDependency("T001", "T002", graph.EdgeBlocks, 1, true))
	require.NoError(t, g.AddDependency("T001", "T003", graph.EdgeBlocks, 1, true))

	tasks := []model.AtomicTask{
		atomicTask("T001", model.PriorityHigh),
		atomicTask("T002", model.PriorityCritical, "T001"),
		atomicTask("T003", model.PriorityMedium, "T001"),
	}

	s := New(Config{Algorithm: AlgorithmPriorityFirst, MaxConcurrentTasks: 10})
	sched, err := s.GenerateSchedule(context.Background(), tasks, g, "p1")
	require.NoError(t, err)
	require.Len(t, sched.ExecutionBatches, 2)
	require.Equal(t, []string{"T001"}, sched.ExecutionBatches[0].TaskIDs)
	require.Len(t, sched.ExecutionBatches[1].TaskIDs, 2)
	require.Equal(t, "T002", sched.ExecutionBatches[1].TaskIDs[0])
}

func TestGenerateScheduleZeroHoursGetsSyntheticMinimum(t *testing.T) {
	g := graph.New()
	g.AddTask("t1", 0)
	task := atomicTask("t1", model.PriorityLow)
	task.EstimatedHours = 0

	s := New(Config{})
	sched, err := s.GenerateSchedule(context.Background(), []model.AtomicTask{task}, g, "p1")
	require.NoError(t, err)
	require.Equal(t, syntheticMinimumHours, sched.ScheduledTasks["t1"].Task.EstimatedHours)
}

func TestGenerateScheduleFlagsTasksMissingFromGraphAsBlockedByCycle(t *testing.T) {
	g := graph.New() // intentionally never registers t1
	task := atomicTask("t1", model.PriorityMedium)

	s := New(Config{})
	sched, err := s.GenerateSchedule(context.Background(), []model.AtomicTask{task}, g, "p1")
	require.NoError(t, err)
	require.Contains(t, sched.BlockedByCycle, "t1")
	require.True(t, sched.ScheduledTasks["t1"].BlockedByCycle)
}
