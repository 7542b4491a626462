package model

import "time"

// WorkflowPhase is a state in the workflow state machine (spec §4.F).
type WorkflowPhase string

const (
	PhaseInitialization WorkflowPhase = "initialization"
	PhaseDecomposition  WorkflowPhase = "decomposition"
	PhasePlanning       WorkflowPhase = "planning"
	PhaseAssignment     WorkflowPhase = "assignment"
	PhaseExecution      WorkflowPhase = "execution"
	PhaseMonitoring     WorkflowPhase = "monitoring"
	PhaseValidation     WorkflowPhase = "validation"
	PhaseCompletion     WorkflowPhase = "completion"
	PhaseErrorRecovery  WorkflowPhase = "error_recovery"
)

// phaseOrder gives each non-terminal phase its position in the total
// order; error_recovery is a side branch reachable from any
// non-terminal phase and returns to assignment or completion.
var phaseOrder = map[WorkflowPhase]int{
	PhaseInitialization: 0,
	PhaseDecomposition:  1,
	PhasePlanning:       2,
	PhaseAssignment:     3,
	PhaseExecution:      4,
	PhaseMonitoring:     5,
	PhaseValidation:     6,
	PhaseCompletion:     7,
}

// CanTransition reports whether moving from 'from' to 'to' is a legal
// workflow phase transition under the state machine in spec §4.F.
func CanTransition(from, to WorkflowPhase) bool {
	if from == to {
		return true // no-op transition, spec §8 idempotence law
	}
	if to == PhaseErrorRecovery {
		return from != PhaseCompletion
	}
	if from == PhaseErrorRecovery {
		return to == PhaseAssignment || to == PhaseCompletion
	}
	fromOrd, fromOK := phaseOrder[from]
	toOrd, toOK := phaseOrder[to]
	if !fromOK || !toOK {
		return false
	}
	return toOrd == fromOrd+1
}

// WorkflowStatus is the overall run status, distinct from Phase.
type WorkflowStatus string

const (
	WorkflowStatusActive    WorkflowStatus = "active"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// WorkflowProgress tracks completion counters; Total never decreases.
type WorkflowProgress struct {
	Total      int     `yaml:"total" json:"total"`
	Completed  int     `yaml:"completed" json:"completed"`
	Failed     int     `yaml:"failed" json:"failed"`
	Percentage float64 `yaml:"percentage" json:"percentage"`
}

// Recompute derives Percentage from Completed/Total, per spec §3's
// invariant.
func (p *WorkflowProgress) Recompute() {
	if p.Total == 0 {
		p.Percentage = 0
		return
	}
	p.Percentage = float64(p.Completed) / float64(p.Total) * 100
}

// WorkflowMetadata carries the request-level context a Workflow was
// started from.
type WorkflowMetadata struct {
	Initiator         string         `yaml:"initiator" json:"initiator"`
	Priority          Priority       `yaml:"priority" json:"priority"`
	EstimatedDuration time.Duration  `yaml:"estimatedDuration" json:"estimatedDuration"`
	ActualDuration    *time.Duration `yaml:"actualDuration,omitempty" json:"actualDuration,omitempty"`
}

// Workflow is a per-session unit of work encompassing one
// decompose/schedule/execute cycle for a project.
type Workflow struct {
	ID             string           `yaml:"id" json:"id"`
	ProjectID      string           `yaml:"projectId" json:"projectId"`
	SessionID      string           `yaml:"sessionId" json:"sessionId"`
	Phase          WorkflowPhase    `yaml:"phase" json:"phase"`
	Status         WorkflowStatus   `yaml:"status" json:"status"`
	TaskIDs        []string         `yaml:"tasks" json:"tasks"`
	AssignedAgents []string         `yaml:"assignedAgents" json:"assignedAgents"`
	Progress       WorkflowProgress `yaml:"progress" json:"progress"`
	StartTime      time.Time        `yaml:"startTime" json:"startTime"`
	EndTime        *time.Time       `yaml:"endTime,omitempty" json:"endTime,omitempty"`
	Metadata       WorkflowMetadata `yaml:"metadata" json:"metadata"`
}

// PhaseEvent is emitted to observers on every transition driven through
// updateWorkflowPhase.
type PhaseEvent struct {
	WorkflowID string
	From       WorkflowPhase
	To         WorkflowPhase
	At         time.Time
}
