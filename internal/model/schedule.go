package model

import "time"

// Schedule is the output of the scheduler for one project.
type Schedule struct {
	ID                string                   `yaml:"id" json:"id"`
	ProjectID         string                   `yaml:"projectId" json:"projectId"`
	Algorithm         string                   `yaml:"algorithm" json:"algorithm"`
	ScheduledTasks    map[string]*ScheduledTask `yaml:"scheduledTasks" json:"scheduledTasks"`
	ExecutionBatches  []ExecutionBatch         `yaml:"executionBatches" json:"executionBatches"`
	Timeline          Timeline                 `yaml:"timeline" json:"timeline"`
	ResourceUtil      ResourceUtilization      `yaml:"resourceUtilization" json:"resourceUtilization"`
	BlockedByCycle    []string                 `yaml:"blockedByCycle,omitempty" json:"blockedByCycle,omitempty"`
	Metadata          map[string]string        `yaml:"metadata" json:"metadata"`
}

// Timeline summarizes the overall shape of a Schedule.
type Timeline struct {
	Start             time.Time `yaml:"start" json:"start"`
	End               time.Time `yaml:"end" json:"end"`
	TotalDuration     time.Duration `yaml:"totalDuration" json:"totalDuration"`
	ParallelismFactor float64   `yaml:"parallelismFactor" json:"parallelismFactor"`
	CriticalPath      []string  `yaml:"criticalPath" json:"criticalPath"`
}

// ResourceUtilization summarizes peak and average resource consumption
// across a schedule's batches.
type ResourceUtilization struct {
	PeakMemoryMB        int     `yaml:"peakMemoryMB" json:"peakMemoryMB"`
	AverageCPUUtil      float64 `yaml:"averageCpuUtilization" json:"averageCpuUtilization"`
	AgentUtilization    float64 `yaml:"agentUtilization" json:"agentUtilization"`
	ResourceEfficiency  float64 `yaml:"resourceEfficiency" json:"resourceEfficiency"`
}

// ScheduleScoreBreakdown records the per-factor scores behind a
// ScheduledTask's totalScore, for operational visibility.
type ScheduleScoreBreakdown struct {
	PriorityScore          float64 `yaml:"priorityScore" json:"priorityScore"`
	ResourceScore          float64 `yaml:"resourceScore" json:"resourceScore"`
	DeadlineScore          float64 `yaml:"deadlineScore" json:"deadlineScore"`
	SystemLoadScore        float64 `yaml:"systemLoadScore" json:"systemLoadScore"`
	ComplexityScore        float64 `yaml:"complexityScore" json:"complexityScore"`
	BusinessImpactScore    float64 `yaml:"businessImpactScore" json:"businessImpactScore"`
	AgentAvailabilityScore float64 `yaml:"agentAvailabilityScore" json:"agentAvailabilityScore"`
	DependencyScore        float64 `yaml:"dependencyScore" json:"dependencyScore"`
	TotalScore             float64 `yaml:"totalScore" json:"totalScore"`
}

// AssignedResources records what a ScheduledTask reserved.
type AssignedResources struct {
	MemoryMB int     `yaml:"memoryMB" json:"memoryMB"`
	CPUWeight float64 `yaml:"cpuWeight" json:"cpuWeight"`
	AgentID  string  `yaml:"agentId,omitempty" json:"agentId,omitempty"`
}

// ScheduledTask pairs an AtomicTask with its computed placement.
type ScheduledTask struct {
	Task              *AtomicTask            `yaml:"task" json:"task"`
	ScheduledStart    time.Time              `yaml:"scheduledStart" json:"scheduledStart"`
	ScheduledEnd      time.Time              `yaml:"scheduledEnd" json:"scheduledEnd"`
	AssignedResources AssignedResources      `yaml:"assignedResources" json:"assignedResources"`
	Metadata          ScheduleScoreBreakdown `yaml:"metadata" json:"metadata"`
	BlockedByCycle    bool                   `yaml:"blockedByCycle,omitempty" json:"blockedByCycle,omitempty"`
}

// ExecutionBatch is an ordered list of tasks considered safe to run in
// parallel.
type ExecutionBatch struct {
	BatchID string   `yaml:"batchId" json:"batchId"`
	TaskIDs []string `yaml:"taskIds" json:"taskIds"`
}

// ResourceProfile is the per-task-type resource footprint used by the
// scheduler's allocation step.
type ResourceProfile struct {
	MemoryMB   int
	CPUWeight  float64
	AgentCount int
}

// DefaultResourceProfile is used for any TaskType not explicitly
// configured.
var DefaultResourceProfile = ResourceProfile{MemoryMB: 256, CPUWeight: 0.25, AgentCount: 1}
