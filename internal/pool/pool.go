// Package pool implements the agent pool (spec.md §4.2): a bounded set
// of worker slots, a fair load-balancing selector, and a completion event
// stream consumed by a single owner.
//
// Grounded on original_source/crates/parallel/src/agent_pool.rs, ported
// from a tokio Arc<RwLock<HashMap>> + mpsc::channel into a sync.RWMutex
// over an ordered slice plus a buffered Go channel.
package pool

import (
	"sync"
	"time"
)

// TaskCompletion is emitted on the completion stream by ReportCompletion.
type TaskCompletion struct {
	AgentID    string
	TaskID     string
	Success    bool
	Error      string
	TokensUsed uint64
}

// Pool is a concurrency-safe set of Agent slots.
type Pool struct {
	mu        sync.RWMutex
	agents    []*Agent // preserves insertion order for tie-breaking
	index     map[string]int
	maxAgents int
	nextSeq   int

	completion chan TaskCompletion
	once       sync.Once
}

// New creates an agent pool bounded at maxAgents slots. The completion
// channel is buffered (capacity 100, matching the teacher's mpsc
// channel(100)) so ReportCompletion never blocks on a slow consumer for
// normal traffic bursts.
func New(maxAgents int) *Pool {
	return &Pool{
		index:      make(map[string]int),
		maxAgents:  maxAgents,
		completion: make(chan TaskCompletion, 100),
	}
}

// AddAgent registers a new Idle agent. Fails with ErrPoolFull at capacity
// (checked first) and ErrDuplicateAgent on an id collision.
func (p *Pool) AddAgent(cfg AgentConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.agents) >= p.maxAgents {
		return ErrPoolFull
	}
	if _, exists := p.index[cfg.ID]; exists {
		return ErrDuplicateAgent
	}

	a := &Agent{Config: cfg, State: StateIdle, seq: p.nextSeq}
	p.nextSeq++
	p.index[cfg.ID] = len(p.agents)
	p.agents = append(p.agents, a)
	return nil
}

// RemoveAgent removes an agent by id and returns its final record, or nil
// if no such agent exists.
func (p *Pool) RemoveAgent(id string) *Agent {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.index[id]
	if !ok {
		return nil
	}
	removed := p.agents[idx]
	p.agents = append(p.agents[:idx], p.agents[idx+1:]...)
	delete(p.index, id)
	for i := idx; i < len(p.agents); i++ {
		p.index[p.agents[i].Config.ID] = i
	}
	return removed
}

// GetAvailableAgent returns the Idle agent with the fewest completed
// tasks, ties broken by insertion order. Returns nil when no agent is
// available (spec.md §8 boundary behavior).
func (p *Pool) GetAvailableAgent() *Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var best *Agent
	for _, a := range p.agents {
		if !a.IsAvailable() {
			continue
		}
		if best == nil {
			best = a
			continue
		}
		if a.Stats.TasksCompleted < best.Stats.TasksCompleted {
			best = a
		} else if a.Stats.TasksCompleted == best.Stats.TasksCompleted && a.seq < best.seq {
			best = a
		}
	}
	return best
}

// AssignTask marks the given agent Working with the given task. Fails
// with ErrAgentNotFound or ErrNotAvailable.
func (p *Pool) AssignTask(agentID, taskID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.index[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	a := p.agents[idx]
	if !a.IsAvailable() {
		return ErrNotAvailable
	}
	a.startTask(taskID, time.Now())
	return nil
}

// ReportCompletion updates agent stats, returns the agent to Idle, and
// emits a TaskCompletion on the completion stream. elapsed is the wall
// time the agent spent on the task.
func (p *Pool) ReportCompletion(agentID, taskID string, success bool, tokensUsed uint64, errMsg string, elapsed time.Duration) error {
	p.mu.Lock()
	idx, ok := p.index[agentID]
	if !ok {
		p.mu.Unlock()
		return ErrAgentNotFound
	}
	a := p.agents[idx]
	if success {
		a.completeTask(tokensUsed, elapsed)
	} else {
		a.failTask(tokensUsed, elapsed)
	}
	p.mu.Unlock()

	p.completion <- TaskCompletion{
		AgentID:    agentID,
		TaskID:     taskID,
		Success:    success,
		Error:      errMsg,
		TokensUsed: tokensUsed,
	}
	return nil
}

// WaitForCompletion blocks until the next TaskCompletion is available or
// the completion stream is closed (ok=false).
func (p *Pool) WaitForCompletion() (TaskCompletion, bool) {
	tc, ok := <-p.completion
	return tc, ok
}

// CloseCompletions closes the completion stream. Only the pool owner
// should call this, and only after all producers (ReportCompletion
// callers) have stopped.
func (p *Pool) CloseCompletions() {
	p.once.Do(func() { close(p.completion) })
}

// PoolStats aggregates per-state counts and totals across the pool.
type PoolStats struct {
	TotalAgents         int
	IdleAgents          int
	WorkingAgents       int
	CompletedAgents     int
	FailedAgents        int
	TotalTasksCompleted int
	TotalTasksFailed    int
	TotalTokensUsed     uint64
}

// Stats returns an aggregate snapshot of the pool.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var s PoolStats
	s.TotalAgents = len(p.agents)
	for _, a := range p.agents {
		switch a.State {
		case StateIdle:
			s.IdleAgents++
		case StateWorking:
			s.WorkingAgents++
		case StateCompleted:
			s.CompletedAgents++
		case StateFailed:
			s.FailedAgents++
		}
		s.TotalTasksCompleted += a.Stats.TasksCompleted
		s.TotalTasksFailed += a.Stats.TasksFailed
		s.TotalTokensUsed += a.Stats.TokensUsed
	}
	return s
}

// ShutdownAll transitions every Idle agent to ShuttingDown. Working
// agents are never pre-empted; they finish their current task first.
func (p *Pool) ShutdownAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, a := range p.agents {
		a.markShuttingDown()
	}
}

// AllDone reports whether every agent has reached a terminal state
// (Completed or Failed).
func (p *Pool) AllDone() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.agents) == 0 {
		return true
	}
	for _, a := range p.agents {
		if a.State != StateCompleted && a.State != StateFailed {
			return false
		}
	}
	return true
}

// Get returns a copy of the agent record for id, or nil if not found.
func (p *Pool) Get(id string) *Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	idx, ok := p.index[id]
	if !ok {
		return nil
	}
	cp := *p.agents[idx]
	return &cp
}
