// Package rdd implements the Recursive Decomposition engine: it
// consults the Atomic Detector to decide split-vs-keep, and when
// splitting, invokes the language model via the Prompt Service's
// "decomposition" template to produce sub-task descriptors, recursing
// until every leaf is atomic or maxDepth is reached.
package rdd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swarmguard/taskmanager/internal/atomic"
	"github.com/swarmguard/taskmanager/internal/lm"
	"github.com/swarmguard/taskmanager/internal/model"
	"github.com/swarmguard/taskmanager/internal/prompts"
	"github.com/swarmguard/taskmanager/internal/resilience"
)

// Config bounds the recursion and fan-out of Decompose, defaulting to
// spec.md §4.D's values.
type Config struct {
	MaxDepth      int
	MaxSubTasks   int
	MinConfidence float64
}

// DefaultConfig matches spec.md §4.D / §6.
var DefaultConfig = Config{MaxDepth: 3, MaxSubTasks: 5, MinConfidence: 0.7}

// Result is the outcome of decomposeTask.
type Result struct {
	Success      bool
	IsAtomic     bool
	SubTasks     []model.AtomicTask
	OriginalTask model.AtomicTask
	Depth        int
	Error        error
}

// Engine runs the RDD algorithm. It is constructed once per process.
type Engine struct {
	detector   *atomic.Detector
	capability lm.Capability
	promptSvc  *prompts.Service
	cfg        Config
	breaker    *resilience.CircuitBreaker
}

// New constructs an Engine with cfg (zero-value fields fall back to
// DefaultConfig).
func New(detector *atomic.Detector, capability lm.Capability, promptSvc *prompts.Service, cfg Config) *Engine {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig.MaxDepth
	}
	if cfg.MaxSubTasks <= 0 {
		cfg.MaxSubTasks = DefaultConfig.MaxSubTasks
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultConfig.MinConfidence
	}
	return &Engine{
		detector:   detector,
		capability: capability,
		promptSvc:  promptSvc,
		cfg:        cfg,
		breaker:    resilience.NewCircuitBreaker(30*time.Second, 6, 5, 0.5, 15*time.Second, 2),
	}
}

// subTaskDescriptor is the shape the "decomposition" LM prompt is
// expected to return, one per sub-task.
type subTaskDescriptor struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Type               string   `json:"type"`
	Priority           string   `json:"priority"`
	EstimatedHours     float64  `json:"estimatedHours"`
	FilePaths          []string `json:"filePaths"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	Tags               []string `json:"tags"`
	Dependencies       []string `json:"dependencies"`
}

// Decompose implements spec.md §4.D's decomposeTask(task, context,
// depth). On any recoverable failure it degrades to "treat as atomic"
// and still returns Success=true, per step 8.
func (e *Engine) Decompose(ctx context.Context, task model.AtomicTask, pc atomic.ProjectContext, depth int) Result {
	if depth >= e.cfg.MaxDepth {
		return Result{Success: true, IsAtomic: true, OriginalTask: task, Depth: depth}
	}

	verdict, err := e.detector.Detect(ctx, &task, pc)
	if err != nil {
		return Result{Success: false, OriginalTask: task, Depth: depth, Error: err}
	}
	if verdict.IsAtomic && verdict.Confidence >= e.cfg.MinConfidence {
		return Result{Success: true, IsAtomic: true, OriginalTask: task, Depth: depth}
	}

	descriptors, err := e.splitViaLM(ctx, task)
	if err != nil {
		slog.Warn("rdd: split invocation failed, degrading to atomic", "task", task.ID, "error", err)
		return Result{Success: true, IsAtomic: true, OriginalTask: task, Depth: depth}
	}

	subTasks := e.materialize(task, descriptors)
	if len(subTasks) == 0 {
		return Result{Success: true, IsAtomic: true, OriginalTask: task, Depth: depth}
	}

	recursed, err := e.recurseAll(ctx, subTasks, pc, depth+1)
	if err != nil {
		return Result{Success: false, OriginalTask: task, Depth: depth, Error: err}
	}

	if len(recursed) > e.cfg.MaxSubTasks {
		recursed = recursed[:e.cfg.MaxSubTasks]
	}
	return Result{Success: true, IsAtomic: false, SubTasks: recursed, OriginalTask: task, Depth: depth}
}

func (e *Engine) splitViaLM(ctx context.Context, task model.AtomicTask) ([]subTaskDescriptor, error) {
	if e.capability == nil {
		return nil, fmt.Errorf("rdd: no language model capability configured")
	}
	systemPrompt, err := e.promptSvc.GetPrompt(ctx, "decomposition")
	if err != nil {
		return nil, err
	}
	prompt, err := e.promptSvc.GetPromptWithVariables(ctx, "decomposition", map[string]string{
		"title":         task.Title,
		"description":   task.Description,
		"max_sub_tasks": fmt.Sprintf("%d", e.cfg.MaxSubTasks),
	})
	if err != nil {
		return nil, err
	}

	if !e.breaker.Allow() {
		return nil, fmt.Errorf("rdd: circuit breaker open for decomposition")
	}
	response, err := resilience.Retry(ctx, 3, 200*time.Millisecond, func(ctx context.Context) (string, error) {
		return e.capability.Invoke(ctx, "decomposition", prompt, systemPrompt, 0.4, lm.FormatJSON)
	})
	e.breaker.RecordResult(err == nil)
	if err != nil {
		return nil, err
	}

	var descriptors []subTaskDescriptor
	if err := json.Unmarshal([]byte(response), &descriptors); err != nil {
		return nil, fmt.Errorf("rdd: malformed split response: %w", err)
	}
	return descriptors, nil
}

// materialize validates each descriptor per spec.md §4.D step 5 and
// assigns ids per step 6, preserving input ordering and silently
// dropping invalid descriptors rather than failing the whole split.
func (e *Engine) materialize(parent model.AtomicTask, descriptors []subTaskDescriptor) []model.AtomicTask {
	out := make([]model.AtomicTask, 0, len(descriptors))
	for i, d := range descriptors {
		if len(out) >= e.cfg.MaxSubTasks {
			break
		}
		if strings.TrimSpace(d.Title) == "" {
			continue
		}
		if d.EstimatedHours <= 0 || d.EstimatedHours > model.MaxSubTaskHours {
			continue
		}
		taskType := model.TaskType(d.Type)
		if !taskType.Valid() {
			taskType = parent.Type
		}
		priority := model.Priority(d.Priority)
		if !priority.Valid() {
			priority = parent.Priority
		}
		out = append(out, model.AtomicTask{
			ID:                 fmt.Sprintf("%s-%02d", parent.ID, i+1),
			ProjectID:          parent.ProjectID,
			EpicID:             parent.EpicID,
			Title:              d.Title,
			Description:        d.Description,
			Type:               taskType,
			Priority:           priority,
			Status:             model.TaskStatusPending,
			EstimatedHours:     d.EstimatedHours,
			FilePaths:          d.FilePaths,
			AcceptanceCriteria: d.AcceptanceCriteria,
			Tags:               d.Tags,
			Dependencies:       resolveDependencyRefs(parent.ID, d.Dependencies, len(descriptors)),
			CreatedBy:          "rdd",
			CreatedAt:          time.Now(),
			UpdatedAt:          time.Now(),
		})
	}
	return out
}

// resolveDependencyRefs turns position references ("0", "1", ...) into
// structured ids (<parentId>-NN); refs that are already structured ids
// pass through unchanged.
func resolveDependencyRefs(parentID string, refs []string, total int) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if strings.Contains(r, "-") {
			out = append(out, r)
			continue
		}
		var pos int
		if _, err := fmt.Sscanf(r, "%d", &pos); err == nil && pos >= 0 && pos < total {
			out = append(out, fmt.Sprintf("%s-%02d", parentID, pos+1))
		}
	}
	return out
}

// recurseAll decomposes each sub-task concurrently, bounded by
// MaxSubTasks fan-out, via golang.org/x/sync/errgroup, then flattens
// the results in original order.
func (e *Engine) recurseAll(ctx context.Context, subTasks []model.AtomicTask, pc atomic.ProjectContext, depth int) ([]model.AtomicTask, error) {
	results := make([]Result, len(subTasks))
	g, gctx := errgroup.WithContext(ctx)
	for i, st := range subTasks {
		i, st := i, st
		g.Go(func() error {
			results[i] = e.Decompose(gctx, st, pc, depth)
			return nil // per-subtask failures are recoverable, never abort the group
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.AtomicTask
	for _, r := range results {
		if r.IsAtomic || !r.Success {
			out = append(out, r.OriginalTask)
			continue
		}
		out = append(out, r.SubTasks...)
	}
	return out, nil
}
