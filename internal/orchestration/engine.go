// Package orchestration implements the Orchestration Engine: the
// agent registry and assignment strategies, the workflow state
// machine, the task scheduling loop, execution lifecycle, watchdog,
// agent heartbeat recovery, workflow cleanup, and periodic metrics —
// ported from the teacher's orchestrator service (scheduler.go,
// cancellation.go, persistence.go) and constructed explicitly via
// NewEngine rather than as a singleton (spec.md §9 Design Note).
package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swarmguard/taskmanager/internal/model"
	orchstore "github.com/swarmguard/taskmanager/internal/orchestration/store"
)

// now is overridable in tests for deterministic timestamps.
var now = time.Now

func durationFromMillis(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

// Dispatcher delivers a task assignment to an agent over whatever
// transport is configured; the core never opens sockets itself
// (spec.md §6 Agent transport collaborator).
type Dispatcher interface {
	Dispatch(ctx context.Context, agent model.Agent, assignment model.TaskAssignment, task model.AtomicTask) error
}

// RecoveryConfig controls automatic retry of failed/timed-out executions.
type RecoveryConfig struct {
	AutoRetry  bool
	MaxRetries int
	RetryDelay time.Duration
}

// Config tunes the engine's timers and default strategy.
type Config struct {
	Strategy          AssignmentStrategy
	SchedulingInterval time.Duration
	WatchdogInterval  time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	DefaultTimeoutMs  int64
	CleanupInterval   time.Duration
	WorkflowRetention time.Duration
	Recovery          RecoveryConfig
}

// DefaultConfig matches spec.md §6's documented defaults.
var DefaultConfig = Config{
	Strategy:           StrategyIntelligentHybrid,
	SchedulingInterval: 5 * time.Second,
	WatchdogInterval:   10 * time.Second,
	HeartbeatInterval:  15 * time.Second,
	HeartbeatTimeout:   45 * time.Second,
	DefaultTimeoutMs:   600000,
	CleanupInterval:    time.Hour,
	WorkflowRetention:  24 * time.Hour,
	Recovery:           RecoveryConfig{AutoRetry: true, MaxRetries: 3, RetryDelay: 5 * time.Second},
}

// Dependencies are the explicit collaborators Engine needs; none are
// looked up lazily (spec.md §9 Design Note on circular singletons).
type Dependencies struct {
	Store      *orchstore.Store
	Dispatcher Dispatcher
	Config     Config
}

// Engine is the orchestration engine. Construct with NewEngine; it
// holds no package-level mutable state.
type Engine struct {
	store      *orchstore.Store
	dispatcher Dispatcher
	cfg        Config

	registry *agentRegistry
	cancel   *cancellationManager

	mu          sync.RWMutex
	workflows   map[string]*model.Workflow
	assignments map[string]*model.TaskAssignment
	executions  map[string]*model.ExecutionContext
	schedule    []*model.ScheduleEntry
	tasksByID   map[string]*model.AtomicTask

	observers []func(model.PhaseEvent)

	startedAt time.Time
	completed int64
}

// NewEngine constructs an Engine over deps, filling unset Config
// fields with DefaultConfig.
func NewEngine(deps Dependencies) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("orchestration: store dependency is required")
	}
	cfg := deps.Config
	if cfg.Strategy == "" {
		cfg.Strategy = DefaultConfig.Strategy
	}
	if cfg.SchedulingInterval <= 0 {
		cfg.SchedulingInterval = DefaultConfig.SchedulingInterval
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = DefaultConfig.WatchdogInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultConfig.HeartbeatInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = DefaultConfig.HeartbeatTimeout
	}
	if cfg.DefaultTimeoutMs <= 0 {
		cfg.DefaultTimeoutMs = DefaultConfig.DefaultTimeoutMs
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig.CleanupInterval
	}
	if cfg.WorkflowRetention <= 0 {
		cfg.WorkflowRetention = DefaultConfig.WorkflowRetention
	}
	if cfg.Recovery.MaxRetries <= 0 {
		cfg.Recovery = DefaultConfig.Recovery
	}

	return &Engine{
		store:       deps.Store,
		dispatcher:  deps.Dispatcher,
		cfg:         cfg,
		registry:    newAgentRegistry(),
		cancel:      newCancellationManager(),
		workflows:   make(map[string]*model.Workflow),
		assignments: make(map[string]*model.TaskAssignment),
		executions:  make(map[string]*model.ExecutionContext),
		tasksByID:   make(map[string]*model.AtomicTask),
		startedAt:   now(),
	}, nil
}

// --- Agent registry -------------------------------------------------

// RegisterAgent implements registerAgent(info).
func (e *Engine) RegisterAgent(a model.Agent) (model.Agent, error) {
	registered := e.registry.register(a)
	if err := e.store.PutAgent(registered.ID, registered); err != nil {
		return registered, model.NewError(model.KindSystem, "Engine.RegisterAgent", "persist agent", err)
	}
	return registered, nil
}

// UpdateAgentStatus implements updateAgentStatus(id, status).
func (e *Engine) UpdateAgentStatus(id string, status model.AgentStatus) error {
	if err := e.registry.updateStatus(id, status); err != nil {
		return err
	}
	if a, ok := e.registry.get(id); ok {
		_ = e.store.PutAgent(id, *a)
	}
	return nil
}

// GetAvailableAgents implements getAvailableAgents(requiredCapabilities?).
func (e *Engine) GetAvailableAgents(required []model.Capability) []model.Agent {
	candidates := e.registry.available(required)
	out := make([]model.Agent, 0, len(candidates))
	for _, a := range candidates {
		out = append(out, *a)
	}
	return out
}

// --- Workflow state machine -----------------------------------------

// CreateWorkflow starts a new workflow in PhaseInitialization.
func (e *Engine) CreateWorkflow(projectID, sessionID string, taskIDs []string, meta model.WorkflowMetadata) model.Workflow {
	wf := model.Workflow{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		SessionID: sessionID,
		Phase:     model.PhaseInitialization,
		Status:    model.WorkflowStatusActive,
		TaskIDs:   taskIDs,
		Progress:  model.WorkflowProgress{Total: len(taskIDs)},
		StartTime: now(),
		Metadata:  meta,
	}
	wf.Progress.Recompute()

	e.mu.Lock()
	e.workflows[wf.ID] = &wf
	e.mu.Unlock()
	_ = e.store.PutWorkflow(wf.ID, wf)
	return wf
}

// OnPhaseTransition registers an observer invoked on every transition
// driven through UpdateWorkflowPhase.
func (e *Engine) OnPhaseTransition(fn func(model.PhaseEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// UpdateWorkflowPhase implements updateWorkflowPhase(id, to), the only
// sanctioned way to move a workflow's phase.
func (e *Engine) UpdateWorkflowPhase(workflowID string, to model.WorkflowPhase) error {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.mu.Unlock()
		return model.NewError(model.KindNotFound, "Engine.UpdateWorkflowPhase", "workflow not found: "+workflowID, nil)
	}
	from := wf.Phase
	if to == from {
		e.mu.Unlock()
		return nil
	}
	if !model.CanTransition(from, to) {
		e.mu.Unlock()
		return model.NewError(model.KindValidation, "Engine.UpdateWorkflowPhase",
			fmt.Sprintf("illegal transition %s -> %s", from, to), nil)
	}
	wf.Phase = to
	if to == model.PhaseCompletion {
		wf.Status = model.WorkflowStatusCompleted
		end := now()
		wf.EndTime = &end
	}
	observers := append([]func(model.PhaseEvent){}, e.observers...)
	e.mu.Unlock()

	_ = e.store.PutWorkflow(workflowID, *wf)
	event := model.PhaseEvent{WorkflowID: workflowID, From: from, To: to, At: now()}
	for _, obs := range observers {
		obs(event)
	}
	return nil
}

// --- Scheduling loop --------------------------------------------------

// EnqueueScheduleEntry adds a pending assignment-pool entry, consumed
// by RunSchedulingTick.
func (e *Engine) EnqueueScheduleEntry(entry model.ScheduleEntry, task model.AtomicTask) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Status = model.ScheduleEntryPending
	e.mu.Lock()
	e.schedule = append(e.schedule, &entry)
	e.tasksByID[task.ID] = &task
	e.mu.Unlock()
	_ = e.store.PutScheduleEntry(entry.ID, entry)
}

// RunSchedulingTick implements spec.md §4.F's task scheduling loop
// body: sort pending entries by priority-weighted score and scheduled
// time, and for each, try to find an available agent via the
// configured strategy.
func (e *Engine) RunSchedulingTick(ctx context.Context) {
	e.mu.Lock()
	pending := make([]*model.ScheduleEntry, 0, len(e.schedule))
	for _, entry := range e.schedule {
		if entry.Status == model.ScheduleEntryPending {
			pending = append(pending, entry)
		}
	}
	e.mu.Unlock()

	sortScheduleEntries(pending)

	for _, entry := range pending {
		agent, err := e.registry.assign(e.cfg.Strategy, entry.Constraints.RequiredCapabilities)
		if err != nil {
			continue // no agent available this tick; retried next tick
		}
		if err := e.createAssignment(ctx, entry, agent); err != nil {
			slog.Warn("orchestration: failed to create assignment", "entry", entry.ID, "error", err)
		}
	}
}

func sortScheduleEntries(entries []*model.ScheduleEntry) {
	weight := func(p model.Priority) float64 {
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
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			a, b := entries[j-1], entries[j]
			less := weight(a.Priority) < weight(b.Priority) ||
				(weight(a.Priority) == weight(b.Priority) && a.ScheduledAt.After(b.ScheduledAt))
			if !less {
				break
			}
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

func (e *Engine) createAssignment(ctx context.Context, entry *model.ScheduleEntry, agent *model.Agent) error {
	assignment := model.TaskAssignment{
		ID:         uuid.NewString(),
		TaskID:     entry.TaskID,
		AgentID:    agent.ID,
		WorkflowID: entry.WorkflowID,
		AssignedAt: now(),
		Status:     model.AssignmentAssigned,
		Priority:   entry.Priority,
		MaxRetries: entry.Constraints.MaxRetries,
	}
	if err := e.registry.markAssigned(agent.ID, entry.TaskID); err != nil {
		return err
	}

	e.mu.Lock()
	e.assignments[assignment.ID] = &assignment
	entry.Status = model.ScheduleEntryAssigned
	entry.AssignedAgent = agent.ID
	task := e.tasksByID[entry.TaskID]
	e.mu.Unlock()

	_ = e.store.PutAssignment(assignment.ID, assignment)
	_ = e.store.PutScheduleEntry(entry.ID, *entry)
	if a, ok := e.registry.get(agent.ID); ok {
		_ = e.store.PutAgent(agent.ID, *a)
	}

	if e.dispatcher != nil && task != nil {
		if err := e.dispatcher.Dispatch(ctx, *agent, assignment, *task); err != nil {
			return fmt.Errorf("dispatch assignment %s: %w", assignment.ID, err)
		}
	}
	return nil
}

// --- Execution lifecycle ----------------------------------------------

// StartExecution implements startExecution(assignmentId).
func (e *Engine) StartExecution(assignmentID string) (model.ExecutionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	assignment, ok := e.assignments[assignmentID]
	if !ok {
		return model.ExecutionContext{}, model.NewError(model.KindNotFound, "Engine.StartExecution", "assignment not found: "+assignmentID, nil)
	}
	assignment.Status = model.AssignmentRunning
	started := now()
	assignment.StartedAt = &started

	ctx := model.ExecutionContext{
		ID:         uuid.NewString(),
		WorkflowID: assignment.WorkflowID,
		TaskID:     assignment.TaskID,
		AgentID:    assignment.AgentID,
		Status:     model.ExecutionRunning,
		StartTime:  started,
		Watchdog: model.Watchdog{
			Enabled:   true,
			TimeoutMs: e.cfg.DefaultTimeoutMs,
			LastCheck: started,
		},
	}
	e.executions[ctx.ID] = &ctx
	cancelCtx, cancel := context.WithCancel(context.Background())
	e.cancel.register(ctx.ID, cancelCtx, cancel)

	_ = e.store.PutAssignment(assignment.ID, *assignment)
	_ = e.store.PutExecution(ctx.ID, ctx)
	return ctx, nil
}

// UpdateExecutionProgress implements updateExecutionProgress(id,
// progress, logs?): bumps watchdog.lastCheck.
func (e *Engine) UpdateExecutionProgress(executionID string, progress int, logs []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, ok := e.executions[executionID]
	if !ok {
		return model.NewError(model.KindNotFound, "Engine.UpdateExecutionProgress", "execution not found: "+executionID, nil)
	}
	ctx.Progress = progress
	ctx.Logs = append(ctx.Logs, logs...)
	ctx.Watchdog.LastCheck = now()
	_ = e.store.PutExecution(executionID, *ctx)
	return nil
}

// CompleteExecution implements completeExecution(id, success, result?):
// terminal; updates Assignment, Agent metrics, and Workflow progress.
func (e *Engine) CompleteExecution(executionID string, success bool) error {
	e.mu.Lock()
	ctx, ok := e.executions[executionID]
	if !ok {
		e.mu.Unlock()
		return model.NewError(model.KindNotFound, "Engine.CompleteExecution", "execution not found: "+executionID, nil)
	}
	end := now()
	ctx.EndTime = &end
	if success {
		ctx.Status = model.ExecutionCompleted
	} else {
		ctx.Status = model.ExecutionFailed
	}

	var taskDuration time.Duration
	assignment := e.assignments[e.assignmentForExecution(ctx)]
	if assignment != nil {
		completedAt := now()
		assignment.CompletedAt = &completedAt
		if success {
			assignment.Status = model.AssignmentCompleted
		} else {
			assignment.Status = model.AssignmentFailed
		}
		if assignment.StartedAt != nil {
			d := completedAt.Sub(*assignment.StartedAt)
			assignment.ActualDuration = &d
			taskDuration = d
		}
	}

	wf := e.workflows[ctx.WorkflowID]
	if wf != nil {
		if success {
			wf.Progress.Completed++
			e.completed++
		} else {
			wf.Progress.Failed++
		}
		wf.Progress.Recompute()
	}
	e.mu.Unlock()

	e.cancel.complete(executionID, ctx.Status)
	if err := e.registry.markFinished(ctx.AgentID, ctx.TaskID, success, taskDuration); err != nil {
		slog.Warn("orchestration: markFinished failed", "agent", ctx.AgentID, "error", err)
	}

	_ = e.store.PutExecution(executionID, *ctx)
	if assignment != nil {
		_ = e.store.PutAssignment(assignment.ID, *assignment)
	}
	if wf != nil {
		_ = e.store.PutWorkflow(wf.ID, *wf)
	}
	if a, ok := e.registry.get(ctx.AgentID); ok {
		_ = e.store.PutAgent(ctx.AgentID, *a)
	}
	return nil
}

func (e *Engine) assignmentForExecution(ctx *model.ExecutionContext) string {
	for id, a := range e.assignments {
		if a.TaskID == ctx.TaskID && a.AgentID == ctx.AgentID && a.Status == model.AssignmentRunning {
			return id
		}
	}
	return ""
}

// --- Cancellation -----------------------------------------------------------

// ExecutionCancelSignal returns the context a Dispatcher should select
// on alongside its own blocking wait, so a CancelExecution/CancelAll
// call actually interrupts work in flight rather than only flipping
// bookkeeping state.
func (e *Engine) ExecutionCancelSignal(executionID string) (context.Context, bool) {
	return e.cancel.context(executionID)
}

// CancelExecution implements spec.md §5's cancellation contract for
// Orchestration: the in-flight execution is marked cancelled; its
// assignment reverts to pending unless maxRetries is exhausted, in
// which case it is marked cancelled too.
func (e *Engine) CancelExecution(executionID, reason string) error {
	if err := e.cancel.cancel(executionID, reason); err != nil {
		return model.NewError(model.KindNotFound, "Engine.CancelExecution", err.Error(), err)
	}

	e.mu.Lock()
	ctx, ok := e.executions[executionID]
	if !ok {
		e.mu.Unlock()
		return model.NewError(model.KindNotFound, "Engine.CancelExecution", "execution not found: "+executionID, nil)
	}
	ctx.Status = model.ExecutionCancelled
	end := now()
	ctx.EndTime = &end
	assignment := e.assignments[e.assignmentForExecution(ctx)]
	e.mu.Unlock()

	_ = e.store.PutExecution(executionID, *ctx)
	_ = e.registry.markFinished(ctx.AgentID, ctx.TaskID, false, 0)
	if a, ok := e.registry.get(ctx.AgentID); ok {
		_ = e.store.PutAgent(ctx.AgentID, *a)
	}

	if assignment == nil {
		return nil
	}
	e.mu.Lock()
	if assignment.RetryCount < assignment.MaxRetries {
		assignment.Status = model.AssignmentPending
		assignment.RetryCount++
		e.mu.Unlock()
		e.requeueTaskForReassignment(assignment.TaskID)
	} else {
		assignment.Status = model.AssignmentCancelled
		e.mu.Unlock()
	}
	_ = e.store.PutAssignment(assignment.ID, *assignment)
	return nil
}

// CancelAll cancels every in-flight execution through CancelExecution,
// used during engine shutdown so no assignment is left silently
// running; each assignment reverts to pending or is cancelled exactly
// as for a single cancellation. It returns how many were cancelled.
func (e *Engine) CancelAll(reason string) int {
	e.mu.RLock()
	running := make([]string, 0, len(e.executions))
	for id, ctx := range e.executions {
		if ctx.Status == model.ExecutionRunning {
			running = append(running, id)
		}
	}
	e.mu.RUnlock()

	n := 0
	for _, id := range running {
		if err := e.CancelExecution(id, reason); err == nil {
			n++
		}
	}
	return n
}

// --- Watchdog -----------------------------------------------------------

// RunWatchdogTick implements spec.md §4.F's watchdog: scans running
// executions; any whose now-lastCheck exceeds timeoutMs increments
// violations; at WatchdogViolationLimit the execution is marked
// timeout and, if autoRetry is enabled and retries remain, the
// underlying assignment is returned to pending.
func (e *Engine) RunWatchdogTick() {
	e.mu.Lock()
	var timedOut []*model.ExecutionContext
	for _, ctx := range e.executions {
		if ctx.Status != model.ExecutionRunning || !ctx.Watchdog.Enabled {
			continue
		}
		elapsed := now().Sub(ctx.Watchdog.LastCheck)
		if elapsed <= durationFromMillis(ctx.Watchdog.TimeoutMs) {
			continue
		}
		ctx.Watchdog.Violations++
		ctx.Watchdog.LastCheck = now()
		if ctx.Watchdog.Violations >= model.WatchdogViolationLimit {
			ctx.Status = model.ExecutionTimeout
			end := now()
			ctx.EndTime = &end
			timedOut = append(timedOut, ctx)
		}
	}
	e.mu.Unlock()

	for _, ctx := range timedOut {
		e.handleTimeout(ctx)
	}
}

func (e *Engine) handleTimeout(ctx *model.ExecutionContext) {
	_ = e.registry.markFinished(ctx.AgentID, ctx.TaskID, false, 0)
	_ = e.store.PutExecution(ctx.ID, *ctx)
	e.cancel.complete(ctx.ID, model.ExecutionTimeout)

	e.mu.Lock()
	assignmentID := e.assignmentForExecution(ctx)
	assignment := e.assignments[assignmentID]
	if assignment != nil {
		assignment.Status = model.AssignmentTimeout
	}
	e.mu.Unlock()
	if assignment == nil {
		return
	}
	_ = e.store.PutAssignment(assignment.ID, *assignment)

	if !e.cfg.Recovery.AutoRetry || assignment.RetryCount >= assignment.MaxRetries {
		return
	}
	go func(a model.TaskAssignment) {
		time.Sleep(e.cfg.Recovery.RetryDelay)
		e.mu.Lock()
		a.Status = model.AssignmentPending
		a.RetryCount++
		e.assignments[a.ID] = &a
		e.mu.Unlock()
		_ = e.store.PutAssignment(a.ID, a)
	}(*assignment)
}

// --- Agent recovery -------------------------------------------------------

// RunHeartbeatTick implements spec.md §4.F's agent recovery: agents
// whose last heartbeat exceeds heartbeatTimeout are marked offline and
// their in-flight tasks freed for reassignment.
func (e *Engine) RunHeartbeatTick() {
	stale := e.registry.offlineStale(e.cfg.HeartbeatTimeout.Milliseconds())
	for _, a := range stale {
		_ = e.store.PutAgent(a.ID, *a)
		for _, taskID := range a.CurrentTasks {
			e.requeueTaskForReassignment(taskID)
		}
	}
}

func (e *Engine) requeueTaskForReassignment(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, entry := range e.schedule {
		if entry.TaskID == taskID && entry.Status == model.ScheduleEntryAssigned {
			entry.Status = model.ScheduleEntryPending
			entry.AssignedAgent = ""
			_ = e.store.PutScheduleEntry(entry.ID, *entry)
		}
	}
}

// Heartbeat implements the agent transport's inbound heartbeat(agentId)
// signal.
func (e *Engine) Heartbeat(agentID string) error {
	return e.UpdateAgentStatus(agentID, model.AgentOnline)
}

// Progress implements the agent transport's inbound
// progress(executionId, progress, logs?) signal.
func (e *Engine) Progress(executionID string, progress int, logs []string) error {
	return e.UpdateExecutionProgress(executionID, progress, logs)
}

// Complete implements the agent transport's inbound
// complete(executionId, success, result?) signal.
func (e *Engine) Complete(executionID string, success bool) error {
	return e.CompleteExecution(executionID, success)
}

// --- Cleanup --------------------------------------------------------------

// RunCleanupTick garbage-collects completed/failed workflows older
// than WorkflowRetention, along with their assignments and execution
// contexts.
func (e *Engine) RunCleanupTick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cutoff := now().Add(-e.cfg.WorkflowRetention)
	removed := 0
	for id, wf := range e.workflows {
		if wf.Status != model.WorkflowStatusCompleted && wf.Status != model.WorkflowStatusFailed {
			continue
		}
		if wf.EndTime == nil || wf.EndTime.After(cutoff) {
			continue
		}
		for aid, a := range e.assignments {
			if a.WorkflowID == id {
				delete(e.assignments, aid)
				_ = e.store.DeleteAssignment(aid)
			}
		}
		for xid, x := range e.executions {
			if x.WorkflowID == id {
				delete(e.executions, xid)
				_ = e.store.DeleteExecution(xid)
			}
		}
		delete(e.workflows, id)
		_ = e.store.DeleteWorkflow(id)
		removed++
	}
	e.cancel.sweep(e.cfg.WorkflowRetention)
	return removed
}

// --- Metrics --------------------------------------------------------------

// MetricsSnapshot is the per-minute operational snapshot (spec.md §4.F).
type MetricsSnapshot struct {
	AgentsByStatus  map[model.AgentStatus]int
	WorkflowCount   int
	TaskCount       int
	ThroughputPerMin float64
	SuccessRate     float64
	ErrorRate       float64
}

// Snapshot computes a MetricsSnapshot from current in-memory state.
func (e *Engine) Snapshot() MetricsSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	elapsedMin := now().Sub(e.startedAt).Minutes()
	throughput := 0.0
	if elapsedMin > 0 {
		throughput = float64(e.completed) / elapsedMin
	}

	var successSum, errorSum float64
	agents := e.registry.snapshotByStatus()
	all := e.registry.all()
	for _, a := range all {
		successSum += a.Performance.SuccessRate
		errorSum += a.Performance.ErrorRate
	}
	successRate, errorRate := 0.0, 0.0
	if n := len(all); n > 0 {
		successRate = successSum / float64(n)
		errorRate = errorSum / float64(n)
	}

	taskCount := 0
	for range e.tasksByID {
		taskCount++
	}

	return MetricsSnapshot{
		AgentsByStatus:   agents,
		WorkflowCount:    len(e.workflows),
		TaskCount:        taskCount,
		ThroughputPerMin: throughput,
		SuccessRate:      successRate,
		ErrorRate:        errorRate,
	}
}
