// Package atomic implements the Atomic Detector: a deterministic
// heuristic gate, expressed as an embedded Rego policy, followed by a
// language-model call for reasoning and complexity factors. The
// heuristic verdict is never overridden by the model (spec.md §4.C).
package atomic

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"github.com/swarmguard/taskmanager/internal/lm"
	"github.com/swarmguard/taskmanager/internal/model"
	"github.com/swarmguard/taskmanager/internal/prompts"
	"github.com/swarmguard/taskmanager/internal/resilience"
)

//go:embed policy.rego
var policySource string

// ProjectContext is the contextual input the detector and RDD engine
// consult alongside a task.
type ProjectContext struct {
	ProjectID     string
	Languages     []string
	Frameworks    []string
	Tools         []string
	ExistingTasks []string
	CodebaseSize  int
	TeamSize      int
	Complexity    string
}

// Verdict is the Atomic Detector's output for one task.
type Verdict struct {
	IsAtomic          bool
	Confidence        float64
	Reasoning         string
	EstimatedHours    float64
	ComplexityFactors []string
	Recommendations   []string
	Violations        []string
}

// Detector evaluates atomicity for a task. It is constructed once per
// process and is safe for concurrent use.
type Detector struct {
	capability lm.Capability
	promptSvc  *prompts.Service
	query      rego.PreparedEvalQuery
	breaker    *resilience.CircuitBreaker
}

// New compiles the embedded atomicity policy and returns a ready
// Detector. capability may be nil in tests that only exercise the
// heuristic gate.
func New(ctx context.Context, capability lm.Capability, promptSvc *prompts.Service) (*Detector, error) {
	query, err := rego.New(
		rego.Query("data.taskmanager.atomicity"),
		rego.Module("policy.rego", policySource),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("atomic: prepare policy: %w", err)
	}
	return &Detector{
		capability: capability,
		promptSvc:  promptSvc,
		query:      query,
		breaker:    resilience.NewCircuitBreaker(30*time.Second, 6, 5, 0.5, 15*time.Second, 2),
	}, nil
}

// Detect returns the atomicity verdict for task within pc. The
// heuristic gate runs first and is authoritative; the language model
// is still consulted (when available) for reasoning and complexity
// factors, never for the verdict itself.
func (d *Detector) Detect(ctx context.Context, task *model.AtomicTask, pc ProjectContext) (Verdict, error) {
	heuristic, err := d.evaluateHeuristic(ctx, task)
	if err != nil {
		return Verdict{}, model.NewError(model.KindSystem, "atomic.Detect", "heuristic evaluation failed", err)
	}

	v := Verdict{
		IsAtomic:       heuristic.atomic,
		Confidence:     confidenceFor(heuristic),
		EstimatedHours: task.EstimatedHours,
		Violations:     heuristic.violations,
	}

	reasoning, factors, err := d.consultLM(ctx, task, pc, heuristic)
	if err != nil {
		slog.Warn("atomic: language model consultation failed, using synthesized reasoning", "task", task.ID, "error", err)
		v.Reasoning = synthesizeReasoning(heuristic)
		return v, nil
	}
	v.Reasoning = reasoning
	v.ComplexityFactors = factors
	return v, nil
}

type heuristicResult struct {
	atomic     bool
	violations []string
}

func (d *Detector) evaluateHeuristic(ctx context.Context, task *model.AtomicTask) (heuristicResult, error) {
	input := map[string]any{
		"text":                      task.Title + " " + task.Description,
		"conjunction_tokens":        []string{"and", "or", "then"},
		"acceptance_criteria_count": len(task.AcceptanceCriteria),
		"estimated_hours":           task.EstimatedHours,
	}
	results, err := d.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return heuristicResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return heuristicResult{}, fmt.Errorf("atomic: empty policy evaluation result")
	}
	doc, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return heuristicResult{}, fmt.Errorf("atomic: unexpected policy result shape")
	}
	out := heuristicResult{}
	if atomicVal, ok := doc["atomic"].(bool); ok {
		out.atomic = atomicVal
	}
	if rawViolations, ok := doc["violations"].([]any); ok {
		for _, rv := range rawViolations {
			if s, ok := rv.(string); ok {
				out.violations = append(out.violations, s)
			}
		}
	}
	return out, nil
}

func confidenceFor(h heuristicResult) float64 {
	if h.atomic {
		return 0.95
	}
	// more violated criteria -> higher confidence in the negative verdict
	c := 0.6 + 0.1*float64(len(h.violations))
	if c > 0.99 {
		c = 0.99
	}
	return c
}

func synthesizeReasoning(h heuristicResult) string {
	if h.atomic {
		return "heuristic gate found no atomicity violations"
	}
	return "heuristic gate rejected: " + strings.Join(h.violations, "; ")
}

func (d *Detector) consultLM(ctx context.Context, task *model.AtomicTask, pc ProjectContext, h heuristicResult) (string, []string, error) {
	if d.capability == nil {
		return "", nil, fmt.Errorf("atomic: no language model capability configured")
	}

	systemPrompt, err := d.promptSvc.GetPrompt(ctx, "atomic_detection")
	if err != nil {
		return "", nil, err
	}
	prompt := fmt.Sprintf(
		"Task: %s\nDescription: %s\nEstimatedHours: %.2f\nAcceptanceCriteria: %v\nHeuristicVerdict: %v\nLanguages: %v\nExplain the atomicity reasoning and list complexity factors, one per line.",
		task.Title, task.Description, task.EstimatedHours, task.AcceptanceCriteria, h.atomic, pc.Languages,
	)

	if !d.breaker.Allow() {
		return "", nil, fmt.Errorf("atomic: circuit breaker open for atomic_detection")
	}

	response, err := resilience.Retry(ctx, 3, 200*time.Millisecond, func(ctx context.Context) (string, error) {
		return d.capability.Invoke(ctx, "atomic_detection", prompt, systemPrompt, 0.3, lm.FormatMarkdown)
	})
	d.breaker.RecordResult(err == nil)
	if err != nil {
		return "", nil, err
	}

	reasoning, factors := parseLMResponse(response)
	return reasoning, factors, nil
}

// parseLMResponse splits a free-text LM response into a reasoning
// paragraph and a list of complexity factors, tolerating any
// malformed shape by treating the whole response as reasoning.
func parseLMResponse(response string) (string, []string) {
	lines := strings.Split(strings.TrimSpace(response), "\n")
	if len(lines) <= 1 {
		return response, nil
	}
	var factors []string
	for _, l := range lines[1:] {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "-"))
		if l != "" {
			factors = append(factors, l)
		}
	}
	return lines[0], factors
}
