package orchestration

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swarmguard/taskmanager/internal/model"
)

// AssignmentStrategy selects which agent serves a task (spec.md §4.F).
type AssignmentStrategy string

const (
	StrategyRoundRobin       AssignmentStrategy = "round_robin"
	StrategyLeastLoaded      AssignmentStrategy = "least_loaded"
	StrategyCapabilityFirst  AssignmentStrategy = "capability_first"
	StrategyPerformanceBased AssignmentStrategy = "performance_based"
	StrategyIntelligentHybrid AssignmentStrategy = "intelligent_hybrid"
)

// agentRegistry holds the live agent pool behind a single lock, per
// spec.md §5's shared-resource policy (reads may proceed concurrently,
// writers exclude readers on the same key; here the registry is small
// enough that one RWMutex over the whole map is the teacher's idiom).
type agentRegistry struct {
	mu          sync.RWMutex
	agents      map[string]*model.Agent
	roundRobin  int
}

func newAgentRegistry() *agentRegistry {
	return &agentRegistry{agents: make(map[string]*model.Agent)}
}

// register implements registerAgent(info): returns a fresh AgentId,
// the agent starts online.
func (r *agentRegistry) register(a model.Agent) model.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Status = model.AgentOnline
	a.Metadata.RegisteredAt = now()
	a.Metadata.LastHeartbeat = now()
	r.agents[a.ID] = &a
	return a
}

func (r *agentRegistry) updateStatus(id string, status model.AgentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return model.NewError(model.KindNotFound, "registry.updateStatus", "agent not found: "+id, nil)
	}
	a.Status = status
	a.Metadata.LastHeartbeat = now()
	return nil
}

func (r *agentRegistry) get(id string) (*model.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// available implements getAvailableAgents(requiredCapabilities?):
// online/idle agents below capacity covering the required
// capabilities, sorted by load ascending then success rate descending.
func (r *agentRegistry) available(required []model.Capability) []*model.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Agent
	for _, a := range r.agents {
		if a.Status != model.AgentOnline && a.Status != model.AgentIdle {
			continue
		}
		if a.MaxConcurrentTasks > 0 && len(a.CurrentTasks) >= a.MaxConcurrentTasks {
			continue
		}
		if !a.HasAllCapabilities(required) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentLoad != out[j].CurrentLoad {
			return out[i].CurrentLoad < out[j].CurrentLoad
		}
		return out[i].Performance.SuccessRate > out[j].Performance.SuccessRate
	})
	return out
}

// assign picks an agent for a task requiring the given capabilities
// under strategy. Returns model.KindResource if no agent is available.
func (r *agentRegistry) assign(strategy AssignmentStrategy, required []model.Capability) (*model.Agent, error) {
	candidates := r.available(required)
	if len(candidates) == 0 {
		return nil, model.NewError(model.KindResource, "registry.assign", "no available agent covers required capabilities", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch strategy {
	case StrategyRoundRobin:
		a := candidates[r.roundRobin%len(candidates)]
		r.roundRobin++
		return a, nil
	case StrategyLeastLoaded:
		return candidates[0], nil // available() already sorts by load ascending
	case StrategyCapabilityFirst:
		for _, a := range candidates {
			if capabilitySetEqual(a.Capabilities, required) {
				return a, nil
			}
		}
		return candidates[0], nil
	case StrategyPerformanceBased:
		best := candidates[0]
		for _, a := range candidates[1:] {
			if a.Performance.SuccessRate > best.Performance.SuccessRate {
				best = a
			}
		}
		return best, nil
	default: // intelligent_hybrid
		best := candidates[0]
		bestScore := hybridScore(best)
		for _, a := range candidates[1:] {
			if score := hybridScore(a); score > bestScore {
				best, bestScore = a, score
			}
		}
		return best, nil
	}
}

// hybridScore implements spec.md §4.F's intelligent_hybrid formula:
// (1-load)*0.3 + successRate*0.4 + capabilityMatch*0.3. Candidates are
// pre-filtered to cover every required capability, so capabilityMatch
// is always 1 here.
func hybridScore(a *model.Agent) float64 {
	return (1-a.CurrentLoad)*0.3 + a.Performance.SuccessRate*0.4 + 1*0.3
}

func capabilitySetEqual(have []model.Capability, want []model.Capability) bool {
	if len(have) != len(want) {
		return false
	}
	set := make(map[model.Capability]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	for _, c := range want {
		if !set[c] {
			return false
		}
	}
	return true
}

func (r *agentRegistry) markAssigned(agentID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("orchestration: agent %s not found", agentID)
	}
	a.CurrentTasks = append(a.CurrentTasks, taskID)
	a.Status = model.AgentBusy
	a.RecomputeLoad()
	return nil
}

// markFinishedEMAAlpha is the smoothing factor for the exponential
// update of Agent.Performance.AverageTaskTime (weight recent 20%),
// matching the teacher's circuit breaker's avgLatency EMA.
const markFinishedEMAAlpha = 0.2

func (r *agentRegistry) markFinished(agentID, taskID string, success bool, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("orchestration: agent %s not found", agentID)
	}
	filtered := a.CurrentTasks[:0]
	for _, t := range a.CurrentTasks {
		if t != taskID {
			filtered = append(filtered, t)
		}
	}
	a.CurrentTasks = filtered
	if len(a.CurrentTasks) == 0 {
		a.Status = model.AgentIdle
	}
	a.RecomputeLoad()

	if success {
		a.Performance.SuccessRate = clamp01(a.Performance.SuccessRate + 0.01)
	} else {
		a.Performance.ErrorRate = clamp01(a.Performance.ErrorRate + 0.01)
	}
	if duration > 0 {
		if a.Performance.AverageTaskTime == 0 {
			a.Performance.AverageTaskTime = duration
		} else {
			a.Performance.AverageTaskTime = time.Duration(markFinishedEMAAlpha*float64(duration) +
				(1-markFinishedEMAAlpha)*float64(a.Performance.AverageTaskTime))
		}
	}
	a.Performance.LastActivity = now()
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (r *agentRegistry) snapshotByStatus() map[model.AgentStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[model.AgentStatus]int{}
	for _, a := range r.agents {
		out[a.Status]++
	}
	return out
}

// all returns a defensive copy of every registered agent.
func (r *agentRegistry) all() []model.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, *a)
	}
	return out
}

func (r *agentRegistry) offlineStale(timeout int64) []*model.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []*model.Agent
	cutoff := now().Add(-durationFromMillis(timeout))
	for _, a := range r.agents {
		if a.Status == model.AgentOffline {
			continue
		}
		if a.Metadata.LastHeartbeat.Before(cutoff) {
			a.Status = model.AgentOffline
			reassigned := a.CurrentTasks
			a.CurrentTasks = nil
			a.RecomputeLoad()
			cp := *a
			cp.CurrentTasks = reassigned
			stale = append(stale, &cp)
		}
	}
	return stale
}
