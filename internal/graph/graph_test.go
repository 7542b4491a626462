package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddDependencyCycleRefused(t *testing.T) {
	g := New()
	g.AddTask("A", 1)
	g.AddTask("B", 1)

	require.NoError(t, g.AddDependency("A", "B", EdgeBlocks, 1, true))
	err := g.AddDependency("B", "A", EdgeBlocks, 1, true)
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)

	layers := g.TopologicalLayers()
	require.Equal(t, [][]string{{"A"}, {"B"}}, layers)
}

func TestTopologicalLayersOrdersHardDeps(t *testing.T) {
	g := New()
	for _, id := range []string{"A", "B", "C", "D"} {
		g.AddTask(id, 1)
	}
	require.NoError(t, g.AddDependency("A", "B", EdgeBlocks, 1, true))
	require.NoError(t, g.AddDependency("A", "C", EdgeBlocks, 1, true))
	require.NoError(t, g.AddDependency("B", "D", EdgeBlocks, 1, true))
	require.NoError(t, g.AddDependency("C", "D", EdgeBlocks, 1, true))

	layers := g.TopologicalLayers()
	require.Len(t, layers, 3)
	require.Equal(t, []string{"A"}, layers[0])
	require.ElementsMatch(t, []string{"B", "C"}, layers[1])
	require.Equal(t, []string{"D"}, layers[2])
}

func TestCriticalPathPicksLongestWeightedChain(t *testing.T) {
	g := New()
	g.AddTask("root", 1)
	g.AddTask("short", 1)
	g.AddTask("long1", 2)
	g.AddTask("long2", 3)
	require.NoError(t, g.AddDependency("root", "short", EdgeBlocks, 1, true))
	require.NoError(t, g.AddDependency("root", "long1", EdgeBlocks, 1, true))
	require.NoError(t, g.AddDependency("long1", "long2", EdgeBlocks, 1, true))

	cp := g.CriticalPath()
	require.Equal(t, []string{"root", "long1", "long2"}, cp)
}

func TestReadyTasksRespectsHardDependenciesOnly(t *testing.T) {
	g := New()
	g.AddTask("A", 1)
	g.AddTask("B", 1)
	g.AddTask("C", 1)
	require.NoError(t, g.AddDependency("A", "B", EdgeBlocks, 1, true))
	require.NoError(t, g.AddDependency("A", "C", EdgeRelated, 1, false))

	ready := g.ReadyTasks(map[string]bool{})
	require.ElementsMatch(t, []string{"A", "C"}, ready)

	ready = g.ReadyTasks(map[string]bool{"A": true})
	require.ElementsMatch(t, []string{"B", "C"}, ready)
}

func TestGraphScalesToTenThousandNodes(t *testing.T) {
	g := New()
	const n = 10000
	for i := 0; i < n; i++ {
		g.AddTask(fmt.Sprintf("t%d", i), 0.1)
	}
	for i := 0; i < n-1; i++ {
		require.NoError(t, g.AddDependency(fmt.Sprintf("t%d", i), fmt.Sprintf("t%d", i+1), EdgeBlocks, 1, true))
	}
	layers := g.TopologicalLayers()
	require.Len(t, layers, n)
}
