// Package scheduler turns a project's atomic tasks and dependency
// graph into an Execution Schedule: ranked, resource-bounded batches
// derived from the graph's topological layers.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/swarmguard/taskmanager/internal/graph"
	"github.com/swarmguard/taskmanager/internal/model"
)

// Algorithm selects how per-task scores are computed.
type Algorithm string

const (
	AlgorithmPriorityFirst    Algorithm = "priority_first"
	AlgorithmEarliestDeadline Algorithm = "earliest_deadline"
	AlgorithmShortestJob      Algorithm = "shortest_job"
	AlgorithmCriticalPath     Algorithm = "critical_path"
	AlgorithmResourceAware    Algorithm = "resource_aware"
	AlgorithmHybridOptimal    Algorithm = "hybrid_optimal"
)

// Weights is the hybrid_optimal scoring weight vector (spec.md §4.E).
type Weights struct {
	Dependencies      float64
	Deadline          float64
	SystemLoad        float64
	Complexity        float64
	BusinessImpact    float64
	AgentAvailability float64
}

// DefaultWeights matches spec.md §4.E's defaults.
var DefaultWeights = Weights{
	Dependencies:      0.35,
	Deadline:          0.25,
	SystemLoad:        0.20,
	Complexity:        0.10,
	BusinessImpact:    0.05,
	AgentAvailability: 0.05,
}

// EmptyScheduleError is returned when tasks is empty.
type EmptyScheduleError struct{}

func (EmptyScheduleError) Error() string { return "scheduler: task list is empty" }

// InvalidTaskError is returned when a task is missing required fields,
// before any resource allocation is attempted.
type InvalidTaskError struct {
	TaskID string
	Reason string
}

func (e InvalidTaskError) Error() string {
	return fmt.Sprintf("scheduler: invalid task %q: %s", e.TaskID, e.Reason)
}

const syntheticMinimumHours = 0.01

// SystemLoad carries the free-capacity snapshot the systemLoad factor
// scores against.
type SystemLoad struct {
	FreeMemoryMB    int
	FreeCPUBudget   float64 // fraction in [0,1]
}

// AgentPool is the subset of agent state the agentAvailability factor
// needs; the orchestration engine's registry satisfies this directly.
type AgentPool struct {
	Agents []model.Agent
}

// Config bounds the scheduler's behavior.
type Config struct {
	Algorithm          Algorithm
	Weights            Weights
	MaxConcurrentTasks int
	MaxMemoryMB        int
	MaxCPUUtilization  float64
	ResourceProfiles   map[model.TaskType]model.ResourceProfile
	SystemLoad         SystemLoad
	Agents             AgentPool
}

// Scheduler computes Execution Schedules. It is stateless aside from
// its Config and safe for concurrent use.
type Scheduler struct {
	cfg Config
}

// New constructs a Scheduler, filling unset fields with spec defaults.
func New(cfg Config) *Scheduler {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmHybridOptimal
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 10
	}
	if cfg.MaxMemoryMB <= 0 {
		cfg.MaxMemoryMB = 8192
	}
	if cfg.MaxCPUUtilization <= 0 {
		cfg.MaxCPUUtilization = 0.8
	}
	if cfg.ResourceProfiles == nil {
		cfg.ResourceProfiles = map[model.TaskType]model.ResourceProfile{}
	}
	return &Scheduler{cfg: cfg}
}

// GenerateSchedule implements spec.md §4.E's generateSchedule(tasks,
// graph, projectId).
func (s *Scheduler) GenerateSchedule(ctx context.Context, tasks []model.AtomicTask, g *graph.Graph, projectID string) (model.Schedule, error) {
	if len(tasks) == 0 {
		return model.Schedule{}, EmptyScheduleError{}
	}
	byID := make(map[string]*model.AtomicTask, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if t.ID == "" {
			return model.Schedule{}, InvalidTaskError{TaskID: t.ID, Reason: "missing id"}
		}
		if !t.Type.Valid() {
			return model.Schedule{}, InvalidTaskError{TaskID: t.ID, Reason: "invalid or missing type"}
		}
		if !t.Priority.Valid() {
			return model.Schedule{}, InvalidTaskError{TaskID: t.ID, Reason: "invalid or missing priority"}
		}
		if t.EstimatedHours < 0 {
			return model.Schedule{}, InvalidTaskError{TaskID: t.ID, Reason: "negative estimatedHours"}
		}
		if t.EstimatedHours == 0 {
			t.EstimatedHours = syntheticMinimumHours
		}
		byID[t.ID] = t
	}

	layers := g.TopologicalLayers()
	inGraph := make(map[string]bool, len(layers))
	for _, layer := range layers {
		for _, id := range layer {
			inGraph[id] = true
		}
	}
	var blocked []string
	for id := range byID {
		if !inGraph[id] {
			blocked = append(blocked, id)
		}
	}
	sort.Strings(blocked)

	scores := s.scoreAll(ctx, byID, layers)

	sched := model.Schedule{
		ID:             fmt.Sprintf("sched-%s", projectID),
		ProjectID:      projectID,
		Algorithm:      string(s.cfg.Algorithm),
		ScheduledTasks: make(map[string]*model.ScheduledTask, len(byID)),
		BlockedByCycle: blocked,
		Metadata:       map[string]string{},
	}

	start := now()
	cursor := start
	batchIdx := 0
	for _, layer := range layers {
		packed := s.packLayer(layer, byID, scores)
		for _, batch := range packed {
			batchEnd := cursor
			ids := make([]string, 0, len(batch))
			for _, id := range batch {
				task := byID[id]
				taskEnd := cursor.Add(time.Duration(task.EstimatedHours * float64(time.Hour)))
				profile := s.profileFor(task.Type)
				sched.ScheduledTasks[id] = &model.ScheduledTask{
					Task:              task,
					ScheduledStart:    cursor,
					ScheduledEnd:      taskEnd,
					AssignedResources: model.AssignedResources{MemoryMB: profile.MemoryMB, CPUWeight: profile.CPUWeight},
					Metadata:          scores[id],
				}
				if taskEnd.After(batchEnd) {
					batchEnd = taskEnd
				}
				ids = append(ids, id)
			}
			sched.ExecutionBatches = append(sched.ExecutionBatches, model.ExecutionBatch{
				BatchID: fmt.Sprintf("%s-batch-%d", sched.ID, batchIdx),
				TaskIDs: ids,
			})
			batchIdx++
			cursor = batchEnd
		}
	}
	for _, id := range blocked {
		task := byID[id]
		sched.ScheduledTasks[id] = &model.ScheduledTask{Task: task, BlockedByCycle: true}
	}

	sched.Timeline = s.buildTimeline(start, cursor, byID, g)
	sched.ResourceUtil = s.buildResourceUtil(sched)
	return sched, nil
}

func (s *Scheduler) profileFor(t model.TaskType) model.ResourceProfile {
	if p, ok := s.cfg.ResourceProfiles[t]; ok {
		return p
	}
	return model.DefaultResourceProfile
}

// packLayer greedily packs one topological layer's tasks, in
// descending score order, into resource- and concurrency-bounded
// batches (spec.md §4.E Batching).
func (s *Scheduler) packLayer(layer []string, byID map[string]*model.AtomicTask, scores map[string]model.ScheduleScoreBreakdown) [][]string {
	ranked := make([]string, 0, len(layer))
	for _, id := range layer {
		if _, ok := byID[id]; ok {
			ranked = append(ranked, id)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]].TotalScore > scores[ranked[j]].TotalScore
	})

	var batches [][]string
	var current []string
	memUsed, cpuUsed := 0, 0.0
	for _, id := range ranked {
		profile := s.profileFor(byID[id].Type)
		fits := len(current) < s.cfg.MaxConcurrentTasks &&
			memUsed+profile.MemoryMB <= s.cfg.MaxMemoryMB &&
			cpuUsed+profile.CPUWeight <= s.cfg.MaxCPUUtilization
		if !fits && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			memUsed, cpuUsed = 0, 0
		}
		current = append(current, id)
		memUsed += profile.MemoryMB
		cpuUsed += profile.CPUWeight
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// scoreAll computes every task's ScheduleScoreBreakdown, fanning the
// per-task work out across goroutines bounded by a semaphore sized to
// GOMAXPROCS, mirroring the teacher's maxWorkers pattern.
func (s *Scheduler) scoreAll(ctx context.Context, byID map[string]*model.AtomicTask, layers [][]string) map[string]model.ScheduleScoreBreakdown {
	layerOf := make(map[string]int, len(byID))
	for i, layer := range layers {
		for _, id := range layer {
			layerOf[id] = i
		}
	}
	dependentsCount := map[string]int{}
	for _, t := range byID {
		for _, dep := range t.Dependencies {
			dependentsCount[dep]++
		}
	}

	sem := semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
	results := make(map[string]model.ScheduleScoreBreakdown, len(byID))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for id, task := range byID {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(id string, task *model.AtomicTask) {
			defer wg.Done()
			defer sem.Release(1)
			breakdown := s.scoreTask(task, layerOf, len(layers), dependentsCount)
			mu.Lock()
			results[id] = breakdown
			mu.Unlock()
		}(id, task)
	}
	wg.Wait()
	return results
}

func (s *Scheduler) scoreTask(task *model.AtomicTask, layerOf map[string]int, layerCount int, dependentsCount map[string]int) model.ScheduleScoreBreakdown {
	w := s.cfg.Weights

	priorityScore := priorityWeight(task.Priority)
	dependencyScore := normalizedDependents(dependentsCount[task.ID])
	deadlineScore := deadlineUrgency(layerOf[task.ID], layerCount)
	systemLoadScore := systemLoadScore(s.cfg.SystemLoad)
	complexityScore := complexityScoreFor(task)
	businessImpactScore := businessImpactScore(task)
	agentAvailabilityScore := agentAvailabilityScore(s.cfg.Agents)

	var total float64
	switch s.cfg.Algorithm {
	case AlgorithmPriorityFirst:
		total = priorityScore
	case AlgorithmEarliestDeadline:
		total = deadlineScore
	case AlgorithmShortestJob:
		total = 1 / (task.EstimatedHours + 0.01)
	case AlgorithmCriticalPath:
		total = dependencyScore
	case AlgorithmResourceAware:
		total = systemLoadScore*0.5 + agentAvailabilityScore*0.5
	default: // hybrid_optimal
		total = w.Dependencies*dependencyScore +
			w.Deadline*deadlineScore +
			w.SystemLoad*systemLoadScore +
			w.Complexity*complexityScore +
			w.BusinessImpact*businessImpactScore +
			w.AgentAvailability*agentAvailabilityScore
	}

	return model.ScheduleScoreBreakdown{
		PriorityScore:          priorityScore,
		DeadlineScore:          deadlineScore,
		SystemLoadScore:        systemLoadScore,
		ComplexityScore:        complexityScore,
		BusinessImpactScore:    businessImpactScore,
		AgentAvailabilityScore: agentAvailabilityScore,
		DependencyScore:        dependencyScore,
		TotalScore:             total,
	}
}

func priorityWeight(p model.Priority) float64 {
	switch p {
	case model.PriorityCritical:
		return 1.0
	case model.PriorityHigh:
		return 0.75
	case model.PriorityMedium:
		return 0.5
	default:
		return 0.25
	}
}

func normalizedDependents(count int) float64 {
	// 8 downstream tasks saturates the score; matches typical fan-out
	// observed in the scale tests.
	score := float64(count) / 8.0
	if score > 1 {
		score = 1
	}
	return score
}

// deadlineUrgency is monotone decreasing in slack: a task in the last
// layer has zero slack (urgency 1); a task in the first layer of a
// long chain has maximal slack (urgency near 0).
func deadlineUrgency(layerIdx, layerCount int) float64 {
	if layerCount <= 1 {
		return 1
	}
	slack := float64(layerCount-1-layerIdx) / float64(layerCount-1)
	return 1 - slack
}

func systemLoadScore(l SystemLoad) float64 {
	memScore := float64(l.FreeMemoryMB) / 8192.0
	if memScore > 1 {
		memScore = 1
	}
	cpuScore := l.FreeCPUBudget
	if cpuScore > 1 {
		cpuScore = 1
	}
	if cpuScore < 0 {
		cpuScore = 0
	}
	return (memScore + cpuScore) / 2
}

func complexityScoreFor(t *model.AtomicTask) float64 {
	weighted := float64(len(t.FilePaths)) + float64(len(t.Dependencies)) +
		float64(len(t.AcceptanceCriteria)) + float64(countTestRefs(t.Tags))
	if weighted == 0 {
		return 1
	}
	return 1 / (1 + weighted/10)
}

func countTestRefs(tags []string) int {
	n := 0
	for _, tag := range tags {
		if tag == "testing" || tag == "test" {
			n++
		}
	}
	return n
}

var businessImpactTags = map[string]bool{
	"customer-facing":  true,
	"revenue-impact":   true,
	"critical-path":    true,
	"security":         true,
}

func businessImpactScore(t *model.AtomicTask) float64 {
	score := priorityWeight(t.Priority) * 0.5
	if t.Type == model.TaskTypeDeployment || t.Type == model.TaskTypeReview {
		score += 0.2
	}
	for _, tag := range t.Tags {
		if businessImpactTags[tag] {
			score += 0.3
			break
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

func agentAvailabilityScore(pool AgentPool) float64 {
	if len(pool.Agents) == 0 {
		return 0.5 // no pool configured: neutral score
	}
	available := 0
	for _, a := range pool.Agents {
		if a.Status == model.AgentOnline || a.Status == model.AgentIdle {
			available++
		}
	}
	return float64(available) / float64(len(pool.Agents))
}

func (s *Scheduler) buildTimeline(start, end time.Time, byID map[string]*model.AtomicTask, g *graph.Graph) model.Timeline {
	totalHours := 0.0
	for _, t := range byID {
		totalHours += t.EstimatedHours
	}
	duration := end.Sub(start)
	parallelism := 1.0
	if duration > 0 {
		parallelism = totalHours / duration.Hours()
	}
	return model.Timeline{
		Start:             start,
		End:               end,
		TotalDuration:     duration,
		ParallelismFactor: parallelism,
		CriticalPath:      g.CriticalPath(),
	}
}

func (s *Scheduler) buildResourceUtil(sched model.Schedule) model.ResourceUtilization {
	peakMem := 0
	var totalCPU float64
	n := 0
	for _, batch := range sched.ExecutionBatches {
		mem, cpu := 0, 0.0
		for _, id := range batch.TaskIDs {
			st := sched.ScheduledTasks[id]
			mem += st.AssignedResources.MemoryMB
			cpu += st.AssignedResources.CPUWeight
		}
		if mem > peakMem {
			peakMem = mem
		}
		totalCPU += cpu
		n++
	}
	avgCPU := 0.0
	if n > 0 {
		avgCPU = totalCPU / float64(n)
	}
	efficiency := 0.0
	if s.cfg.MaxMemoryMB > 0 {
		efficiency = float64(peakMem) / float64(s.cfg.MaxMemoryMB)
	}
	return model.ResourceUtilization{
		PeakMemoryMB:       peakMem,
		AverageCPUUtil:     avgCPU,
		AgentUtilization:   agentAvailabilityScore(s.cfg.Agents),
		ResourceEfficiency: efficiency,
	}
}

// now is overridable in tests via a package var rather than time.Now
// directly, keeping schedule timestamps deterministic where needed.
var now = time.Now
