// Package model holds the core data types of the Vibe Task Manager:
// projects, epics, atomic tasks, dependencies, schedules, workflows,
// agents, and their supporting value types. Nothing in this package
// performs I/O; it is pure data plus the small validation helpers the
// rest of the engines share.
package model

import "time"

// TaskType enumerates the kind of work an AtomicTask represents.
type TaskType string

const (
	TaskTypeDevelopment   TaskType = "development"
	TaskTypeTesting       TaskType = "testing"
	TaskTypeDocumentation TaskType = "documentation"
	TaskTypeDeployment    TaskType = "deployment"
	TaskTypeResearch      TaskType = "research"
	TaskTypeReview        TaskType = "review"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeDevelopment, TaskTypeTesting, TaskTypeDocumentation, TaskTypeDeployment, TaskTypeResearch, TaskTypeReview:
		return true
	}
	return false
}

// Priority is shared by epics, tasks, and schedule entries.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// TaskStatus is the lifecycle state of an AtomicTask.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// AtomicThresholdHours is the maximum estimatedHours for a task to
// qualify as atomic (spec Design Note: fixed at 0.25h).
const AtomicThresholdHours = 0.25

// MaxSubTaskHours is the upper bound a freshly produced sub-task's
// estimatedHours may take before atomicity refinement (spec Design
// Note: fixed at 4h).
const MaxSubTaskHours = 4.0

// AtomicTask is the leaf unit of work the orchestration engine assigns
// to an agent.
type AtomicTask struct {
	ID                 string     `yaml:"id" json:"id"`
	ProjectID          string     `yaml:"projectId" json:"projectId"`
	EpicID             string     `yaml:"epicId" json:"epicId"`
	Title              string     `yaml:"title" json:"title"`
	Description        string     `yaml:"description" json:"description"`
	Type               TaskType   `yaml:"type" json:"type"`
	Priority           Priority   `yaml:"priority" json:"priority"`
	Status             TaskStatus `yaml:"status" json:"status"`
	EstimatedHours     float64    `yaml:"estimatedHours" json:"estimatedHours"`
	ActualHours        float64    `yaml:"actualHours" json:"actualHours"`
	FilePaths          []string   `yaml:"filePaths" json:"filePaths"`
	AcceptanceCriteria []string   `yaml:"acceptanceCriteria" json:"acceptanceCriteria"`
	Dependencies       []string   `yaml:"dependencies" json:"dependencies"`
	Dependents         []string   `yaml:"dependents" json:"dependents"`
	Tags               []string   `yaml:"tags" json:"tags"`
	CreatedBy          string     `yaml:"createdBy" json:"createdBy"`
	CreatedAt          time.Time  `yaml:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time  `yaml:"updatedAt" json:"updatedAt"`
}

// IsAtomicByHours reports only the hours half of the atomicity
// criterion; the full verdict also needs the textual/criteria checks
// performed by internal/atomic.
func (t *AtomicTask) IsAtomicByHours() bool {
	return t.EstimatedHours <= AtomicThresholdHours
}

// Project is the top-level container a user request is scoped to.
type Project struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	RootPath    string    `yaml:"rootPath" json:"rootPath"`
	Status      string    `yaml:"status" json:"status"`
	Tags        []string  `yaml:"tags" json:"tags"`
	CreatedAt   time.Time `yaml:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `yaml:"updatedAt" json:"updatedAt"`
}

// Epic groups related tasks under a Project.
type Epic struct {
	ID             string    `yaml:"id" json:"id"`
	ProjectID      string    `yaml:"projectId" json:"projectId"`
	Title          string    `yaml:"title" json:"title"`
	Description    string    `yaml:"description" json:"description"`
	Status         string    `yaml:"status" json:"status"`
	Priority       Priority  `yaml:"priority" json:"priority"`
	EstimatedHours float64   `yaml:"estimatedHours" json:"estimatedHours"`
	TaskIDs        []string  `yaml:"taskIds" json:"taskIds"`
	Dependencies   []string  `yaml:"dependencies" json:"dependencies"`
	CreatedAt      time.Time `yaml:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `yaml:"updatedAt" json:"updatedAt"`
}

// DependencyType classifies the semantic relationship of an edge.
type DependencyType string

const (
	DependencyBlocks  DependencyType = "blocks"
	DependencyEnables DependencyType = "enables"
	DependencyRelated DependencyType = "related"
)

// Dependency is a directed edge between two tasks.
type Dependency struct {
	ID        string         `yaml:"id" json:"id"`
	ProjectID string         `yaml:"projectId" json:"projectId"`
	From      string         `yaml:"from" json:"from"`
	To        string         `yaml:"to" json:"to"`
	Type      DependencyType `yaml:"type" json:"type"`
	Weight    int            `yaml:"weight" json:"weight"`
	Hard      bool           `yaml:"hard" json:"hard"`
	Rationale string         `yaml:"rationale" json:"rationale"`
	CreatedAt time.Time      `yaml:"createdAt" json:"createdAt"`
}
