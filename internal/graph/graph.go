// Package graph implements the in-memory dependency DAG over project
// tasks: insertion-time cycle detection, topological layering, a
// weighted critical path, and ready-task queries. It is adapted from
// the teacher's workflow DAG engine (dagNode/dag, Kahn's-algorithm
// layering) repurposed from "execute a workflow" to "order a task set".
package graph

import (
	"fmt"
	"sync"
)

// EdgeType mirrors model.DependencyType without importing internal/model,
// so this package stays a reusable pure-graph primitive.
type EdgeType string

const (
	EdgeBlocks  EdgeType = "blocks"
	EdgeEnables EdgeType = "enables"
	EdgeRelated EdgeType = "related"
)

// Edge is a directed dependency between two task ids.
type Edge struct {
	From   string
	To     string
	Type   EdgeType
	Weight int
	Hard   bool
}

// CycleError is returned when adding an edge would create a cycle; it
// carries the path that closes the loop for diagnostics.
type CycleError struct {
	From, To string
	Path     []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency %s -> %s would create a cycle: %v", e.From, e.To, e.Path)
}

type node struct {
	id             string
	estimatedHours float64
	inbound        []*Edge
	outbound       []*Edge
}

// Graph is a directed acyclic graph of task ids, keyed by id for O(1)
// node lookup, with slice adjacency matching the teacher's dagNode
// shape for scale (≥10,000 nodes / ≥30,000 edges).
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// New constructs an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddTask registers a task id with its estimated hours (used by
// CriticalPath). Re-adding an existing id updates its hours in place.
func (g *Graph) AddTask(id string, estimatedHours float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		n.estimatedHours = estimatedHours
		return
	}
	g.nodes[id] = &node{id: id, estimatedHours: estimatedHours}
}

// HasTask reports whether id has been added.
func (g *Graph) HasTask(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// AddDependency adds a from->to edge. It fails atomically with
// *CycleError, leaving the graph unchanged, if the edge would create a
// cycle. Both endpoints must already exist via AddTask.
func (g *Graph) AddDependency(from, to string, typ EdgeType, weight int, hard bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fn, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("graph: unknown task %q", from)
	}
	tn, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("graph: unknown task %q", to)
	}

	if path, cyclic := g.wouldCycle(from, to); cyclic {
		return &CycleError{From: from, To: to, Path: path}
	}

	e := &Edge{From: from, To: to, Type: typ, Weight: weight, Hard: hard}
	fn.outbound = append(fn.outbound, e)
	tn.inbound = append(tn.inbound, e)
	return nil
}

// wouldCycle reports whether adding from->to creates a cycle, by
// checking whether 'from' is reachable from 'to' via a DFS over a
// single visited set; if so it also returns the discovered
// path (to -> ... -> from) for diagnostics.
func (g *Graph) wouldCycle(from, to string) ([]string, bool) {
	if from == to {
		return []string{from, to}, true
	}
	visited := make(map[string]bool)
	var path []string
	var dfs func(cur string) bool
	dfs = func(cur string) bool {
		if cur == from {
			path = append(path, cur)
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
		for _, e := range g.nodes[cur].outbound {
			if dfs(e.To) {
				path = append(path, cur)
				return true
			}
		}
		return false
	}
	if dfs(to) {
		// path was built leaf-first; reverse it to read to -> ... -> from
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		return path, true
	}
	return nil, false
}

// TopologicalLayers returns an ordered list of id sets; each set is
// parallel-safe (every member's hard dependencies lie in an earlier
// layer). Computed via Kahn's algorithm, generalized from the
// teacher's executeDAG to stop after computing layers rather than
// running tasks.
func (g *Graph) TopologicalLayers() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	inDegree := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		hard := 0
		for _, e := range n.inbound {
			if e.Hard {
				hard++
			}
		}
		inDegree[id] = hard
	}

	var layers [][]string
	remaining := len(g.nodes)
	for remaining > 0 {
		var layer []string
		for id, deg := range inDegree {
			if deg == 0 {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			// residual cycle (shouldn't happen given insertion-time
			// detection, but callers that bypass AddDependency directly
			// could produce one); stop rather than loop forever.
			break
		}
		for _, id := range layer {
			delete(inDegree, id)
			remaining--
			for _, e := range g.nodes[id].outbound {
				if e.Hard {
					inDegree[e.To]--
				}
			}
		}
		layers = append(layers, layer)
	}
	return layers
}

// ReadyTasks returns ids whose hard dependencies are all present in
// completed.
func (g *Graph) ReadyTasks(completed map[string]bool) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id, n := range g.nodes {
		if completed[id] {
			continue
		}
		ok := true
		for _, e := range n.inbound {
			if e.Hard && !completed[e.From] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}

// CriticalPath returns the longest weighted path (by estimatedHours of
// the dependent/target task) from any root to any leaf.
func (g *Graph) CriticalPath() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	memo := make(map[string][]string)
	var best func(id string) []string
	best = func(id string) []string {
		if p, ok := memo[id]; ok {
			return p
		}
		n := g.nodes[id]
		var longest []string
		var longestHours float64
		for _, e := range n.outbound {
			candidate := best(e.To)
			hours := pathHours(g, candidate)
			if hours > longestHours {
				longest = candidate
				longestHours = hours
			}
		}
		path := append([]string{id}, longest...)
		memo[id] = path
		return path
	}

	var overallBest []string
	var overallHours float64
	for id, n := range g.nodes {
		if len(n.inbound) != 0 {
			continue // only consider roots
		}
		p := best(id)
		h := pathHours(g, p)
		if h > overallHours || overallBest == nil {
			overallBest = p
			overallHours = h
		}
	}
	if overallBest == nil {
		// no roots (empty graph, or every node has an inbound edge —
		// only possible if the graph already contains a cycle inserted
		// outside AddDependency); fall back to a single highest-hours node.
		var bestHours float64
		for id, n := range g.nodes {
			if overallBest == nil || n.estimatedHours > bestHours {
				overallBest = []string{id}
				bestHours = n.estimatedHours
			}
		}
	}
	return overallBest
}

func pathHours(g *Graph, path []string) float64 {
	var total float64
	for _, id := range path {
		if n, ok := g.nodes[id]; ok {
			total += n.estimatedHours
		}
	}
	return total
}

// NodeCount reports the number of registered tasks.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
