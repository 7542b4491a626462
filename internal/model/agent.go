package model

import "time"

// AgentStatus is the lifecycle state of a registered agent.
type AgentStatus string

const (
	AgentOnline      AgentStatus = "online"
	AgentOffline     AgentStatus = "offline"
	AgentBusy        AgentStatus = "busy"
	AgentIdle        AgentStatus = "idle"
	AgentError       AgentStatus = "error"
	AgentMaintenance AgentStatus = "maintenance"
)

// Capability is a declared skill an agent can be matched against.
type Capability string

const (
	CapabilityTaskExecution  Capability = "task_execution"
	CapabilityCodeGeneration Capability = "code_generation"
	CapabilityTesting        Capability = "testing"
	CapabilityDocumentation  Capability = "documentation"
	CapabilityResearch       Capability = "research"
	CapabilityAnalysis       Capability = "analysis"
	CapabilityDeployment     Capability = "deployment"
	CapabilityMonitoring     Capability = "monitoring"
	CapabilityDebugging      Capability = "debugging"
)

// AgentPerformance is the rolling performance record an agent accrues
// as executions complete.
type AgentPerformance struct {
	AverageTaskTime time.Duration `yaml:"averageTaskTime" json:"averageTaskTime"`
	SuccessRate     float64       `yaml:"successRate" json:"successRate"`
	ErrorRate       float64       `yaml:"errorRate" json:"errorRate"`
	LastActivity    time.Time     `yaml:"lastActivity" json:"lastActivity"`
}

// AgentMetadata is registration-time and heartbeat bookkeeping.
type AgentMetadata struct {
	Version           string    `yaml:"version" json:"version"`
	Endpoint          string    `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval" json:"heartbeatInterval"`
	LastHeartbeat     time.Time `yaml:"lastHeartbeat" json:"lastHeartbeat"`
	RegisteredAt      time.Time `yaml:"registeredAt" json:"registeredAt"`
}

// Agent is an external worker the orchestration engine assigns tasks
// to through the Agent Transport collaborator.
type Agent struct {
	ID                 string           `yaml:"id" json:"id"`
	Name               string           `yaml:"name" json:"name"`
	Status             AgentStatus      `yaml:"status" json:"status"`
	Capabilities       []Capability     `yaml:"capabilities" json:"capabilities"`
	CurrentLoad        float64          `yaml:"currentLoad" json:"currentLoad"`
	MaxConcurrentTasks int              `yaml:"maxConcurrentTasks" json:"maxConcurrentTasks"`
	CurrentTasks       []string         `yaml:"currentTasks" json:"currentTasks"`
	Performance        AgentPerformance `yaml:"performance" json:"performance"`
	Metadata           AgentMetadata    `yaml:"metadata" json:"metadata"`
}

// RecomputeLoad derives CurrentLoad from CurrentTasks/MaxConcurrentTasks
// per spec §3's invariant.
func (a *Agent) RecomputeLoad() {
	if a.MaxConcurrentTasks <= 0 {
		a.CurrentLoad = 0
		return
	}
	a.CurrentLoad = float64(len(a.CurrentTasks)) / float64(a.MaxConcurrentTasks)
}

// HasCapability reports whether the agent declares cap.
func (a *Agent) HasCapability(cap Capability) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// HasAllCapabilities reports whether the agent declares every
// capability in required.
func (a *Agent) HasAllCapabilities(required []Capability) bool {
	for _, r := range required {
		if !a.HasCapability(r) {
			return false
		}
	}
	return true
}

// AssignmentStatus is the lifecycle of a TaskAssignment.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentRunning   AssignmentStatus = "running"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentFailed    AssignmentStatus = "failed"
	AssignmentTimeout   AssignmentStatus = "timeout"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// TaskAssignment binds a Task to an Agent within a Workflow.
type TaskAssignment struct {
	ID                string           `yaml:"id" json:"id"`
	TaskID            string           `yaml:"taskId" json:"taskId"`
	AgentID           string           `yaml:"agentId" json:"agentId"`
	WorkflowID        string           `yaml:"workflowId" json:"workflowId"`
	AssignedAt        time.Time        `yaml:"assignedAt" json:"assignedAt"`
	StartedAt         *time.Time       `yaml:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt       *time.Time       `yaml:"completedAt,omitempty" json:"completedAt,omitempty"`
	Status            AssignmentStatus `yaml:"status" json:"status"`
	Priority          Priority         `yaml:"priority" json:"priority"`
	EstimatedDuration time.Duration    `yaml:"estimatedDuration" json:"estimatedDuration"`
	ActualDuration    *time.Duration   `yaml:"actualDuration,omitempty" json:"actualDuration,omitempty"`
	RetryCount        int              `yaml:"retryCount" json:"retryCount"`
	MaxRetries        int              `yaml:"maxRetries" json:"maxRetries"`
}

// ExecutionStatus is the lifecycle of an ExecutionContext.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionTimeout   ExecutionStatus = "timeout"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// ExecutionMetrics is the sampled resource/latency footprint of a
// running execution, as reported by progress pushes.
type ExecutionMetrics struct {
	MemoryUsage  int64         `yaml:"memoryUsage" json:"memoryUsage"`
	CPUUsage     float64       `yaml:"cpuUsage" json:"cpuUsage"`
	ResponseTime time.Duration `yaml:"responseTime" json:"responseTime"`
}

// Watchdog is the per-execution timeout tracker.
type Watchdog struct {
	Enabled    bool      `yaml:"enabled" json:"enabled"`
	TimeoutMs  int64     `yaml:"timeoutMs" json:"timeoutMs"`
	LastCheck  time.Time `yaml:"lastCheck" json:"lastCheck"`
	Violations int       `yaml:"violations" json:"violations"`
}

// WatchdogViolationLimit is the violation count at which an execution
// is marked timed out (spec §4.F, scenario 5).
const WatchdogViolationLimit = 3

// ExecutionContext is the live state of one task's execution by one
// agent.
type ExecutionContext struct {
	ID         string            `yaml:"id" json:"id"`
	WorkflowID string            `yaml:"workflowId" json:"workflowId"`
	TaskID     string            `yaml:"taskId" json:"taskId"`
	AgentID    string            `yaml:"agentId" json:"agentId"`
	Status     ExecutionStatus   `yaml:"status" json:"status"`
	StartTime  time.Time         `yaml:"startTime" json:"startTime"`
	EndTime    *time.Time        `yaml:"endTime,omitempty" json:"endTime,omitempty"`
	Progress   int               `yaml:"progress" json:"progress"`
	Logs       []string          `yaml:"logs" json:"logs"`
	Errors     []string          `yaml:"errors" json:"errors"`
	Metrics    ExecutionMetrics  `yaml:"metrics" json:"metrics"`
	Watchdog   Watchdog          `yaml:"watchdog" json:"watchdog"`
}

// ScheduleEntryStatus is the lifecycle of a pending-pool ScheduleEntry.
type ScheduleEntryStatus string

const (
	ScheduleEntryPending   ScheduleEntryStatus = "pending"
	ScheduleEntryAssigned  ScheduleEntryStatus = "assigned"
	ScheduleEntryCancelled ScheduleEntryStatus = "cancelled"
)

// ScheduleConstraints narrows which agents may serve a ScheduleEntry.
type ScheduleConstraints struct {
	RequiredCapabilities []Capability `yaml:"requiredCapabilities" json:"requiredCapabilities"`
	PreferredAgents      []string     `yaml:"preferredAgents" json:"preferredAgents"`
	ExcludedAgents       []string     `yaml:"excludedAgents" json:"excludedAgents"`
	MaxRetries           int          `yaml:"maxRetries" json:"maxRetries"`
	TimeoutMs            int64        `yaml:"timeoutMs" json:"timeoutMs"`
}

// ScheduleEntry is one row of the orchestration engine's pending
// assignment pool, consumed by the task scheduling loop.
type ScheduleEntry struct {
	ID            string              `yaml:"id" json:"id"`
	TaskID        string              `yaml:"taskId" json:"taskId"`
	WorkflowID    string              `yaml:"workflowId" json:"workflowId"`
	ScheduledAt   time.Time           `yaml:"scheduledAt" json:"scheduledAt"`
	Priority      Priority            `yaml:"priority" json:"priority"`
	Dependencies  []string            `yaml:"dependencies" json:"dependencies"`
	Constraints   ScheduleConstraints `yaml:"constraints" json:"constraints"`
	Status        ScheduleEntryStatus `yaml:"status" json:"status"`
	AssignedAgent string              `yaml:"assignedAgent,omitempty" json:"assignedAgent,omitempty"`
}
