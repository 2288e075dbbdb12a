package pool

import (
	"time"
)

// State is the lifecycle state of a pool agent (spec.md §3 Agent).
type State string

const (
	StateIdle         State = "idle"
	StateWorking      State = "working"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateShuttingDown State = "shutting_down"
)

// AgentConfig describes an agent slot at construction time.
type AgentConfig struct {
	ID            string
	WorktreePath  string
	Branch        string
	MaxTasks      *int // nil means unbounded
	UseIsolated   bool // execution preference: local (false) vs. isolated/container (true)
}

func (c AgentConfig) validate() error {
	if c.ID == "" {
		return ErrInvalidConfig
	}
	if c.MaxTasks != nil && *c.MaxTasks < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Stats accumulates per-agent counters (spec.md §3 Agent.Stats).
type Stats struct {
	TasksCompleted  int
	TasksFailed     int
	TokensUsed      uint64
	ExecutionTime   time.Duration
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Agent is a single slot in the pool: identity, lifecycle state, stats,
// and the task it is currently assigned (if any).
type Agent struct {
	Config      AgentConfig
	State       State
	Stats       Stats
	CurrentTask string // empty when not Working

	seq int // insertion order, used to break load-balance ties
}

// IsAvailable reports whether the agent can accept a new task assignment,
// honoring the optional per-agent MaxTasks cap.
func (a *Agent) IsAvailable() bool {
	if a.State != StateIdle {
		return false
	}
	if a.Config.MaxTasks != nil && a.Stats.TasksCompleted+a.Stats.TasksFailed >= *a.Config.MaxTasks {
		return false
	}
	return true
}

// startTask transitions the agent into Working for the given task.
func (a *Agent) startTask(taskID string, now time.Time) {
	a.State = StateWorking
	a.CurrentTask = taskID
	if a.Stats.StartedAt == nil {
		a.Stats.StartedAt = &now
	}
}

// completeTask records a successful completion and returns the agent to Idle.
func (a *Agent) completeTask(tokensUsed uint64, elapsed time.Duration) {
	a.Stats.TasksCompleted++
	a.Stats.TokensUsed += tokensUsed
	a.Stats.ExecutionTime += elapsed
	a.CurrentTask = ""
	a.State = StateIdle
}

// failTask records a failed completion and returns the agent to Idle.
func (a *Agent) failTask(tokensUsed uint64, elapsed time.Duration) {
	a.Stats.TasksFailed++
	a.Stats.TokensUsed += tokensUsed
	a.Stats.ExecutionTime += elapsed
	a.CurrentTask = ""
	a.State = StateIdle
}

// markShuttingDown transitions an Idle agent into ShuttingDown; it is a
// no-op for agents that are not Idle (Working agents are never preempted).
func (a *Agent) markShuttingDown() {
	if a.State == StateIdle {
		a.State = StateShuttingDown
	}
}
