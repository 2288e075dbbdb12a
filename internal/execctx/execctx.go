// Package execctx implements ExecutionContext (spec.md §3, §4.2): the
// record carried alongside a task assignment, its Mode/State enums, and
// the fixed legal transition table enforced at the pool boundary.
//
// Grounded on original_source/crates/taskmaster/src/types/execution.rs,
// including its exact can_transition_to table and its Display/FromStr
// round-trip (spec.md §8 names this round-trip explicitly).
package execctx

import (
	"fmt"
	"time"
)

// Mode is the execution placement of a task assignment.
type Mode string

const (
	ModeNone      Mode = "none"
	ModeLocal     Mode = "local"
	ModeContainer Mode = "container"
)

func (m Mode) String() string { return string(m) }

// ParseMode parses a Mode from its string representation.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNone, ModeLocal, ModeContainer:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("execctx: invalid mode %q", s)
	}
}

// State is the lifecycle state of an ExecutionContext.
type State string

const (
	StateUnscheduled State = "unscheduled"
	StateQueued      State = "queued"
	StateProvisioning State = "provisioning"
	StateRunning     State = "running"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateLost        State = "lost"
	StateCancelled   State = "cancelled"
)

func (s State) String() string { return string(s) }

// ParseState parses a State from its string representation.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateUnscheduled, StateQueued, StateProvisioning, StateRunning,
		StateSucceeded, StateFailed, StateLost, StateCancelled:
		return State(s), nil
	default:
		return "", fmt.Errorf("execctx: invalid state %q", s)
	}
}

// isTerminal reports whether a state has no further organic transitions
// other than a retry back to Unscheduled.
func isTerminal(s State) bool {
	switch s {
	case StateSucceeded, StateFailed, StateLost, StateCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo implements the exact transition table required by
// spec.md §4.2: Unscheduled -> Queued -> Provisioning -> Running ->
// {Succeeded|Failed|Lost|Cancelled}; any non-terminal state may also go
// to Cancelled or Lost; any terminal state may go back to Unscheduled
// (retry). No other edges are legal.
func CanTransitionTo(from, to State) bool {
	if from == to {
		return false
	}
	if isTerminal(from) {
		return to == StateUnscheduled
	}
	switch to {
	case StateCancelled, StateLost:
		return true
	}
	switch from {
	case StateUnscheduled:
		return to == StateQueued
	case StateQueued:
		return to == StateProvisioning
	case StateProvisioning:
		return to == StateRunning
	case StateRunning:
		return to == StateSucceeded || to == StateFailed
	}
	return false
}

// Context carries execution metadata for a single task assignment.
type Context struct {
	Mode        Mode
	State       State
	ContainerID string
	AgentID     string
	Branch      string
	RemoteURL   string
	StartedAt   *time.Time
	FinishedAt  *time.Time
	ExitCode    *int

	// Stdout/Stderr are bounded captures; callers must truncate to
	// spec.md's 64 KiB cap before assignment (enforced by TruncateOutput).
	Stdout string
	Stderr string
}

// MaxCaptureBytes is the spec.md §3 bound on stdout/stderr captures.
const MaxCaptureBytes = 64 * 1024

// TruncateOutput clamps s to MaxCaptureBytes, keeping the tail (the most
// recent output is usually the most diagnostic).
func TruncateOutput(s string) string {
	if len(s) <= MaxCaptureBytes {
		return s
	}
	return s[len(s)-MaxCaptureBytes:]
}

// New returns a freshly constructed Unscheduled, mode-less context.
func New() *Context {
	return &Context{Mode: ModeNone, State: StateUnscheduled}
}

// Local constructs a Context bound to local execution by agentID.
func Local(agentID string) *Context {
	return &Context{Mode: ModeLocal, State: StateUnscheduled, AgentID: agentID}
}

// Container constructs a Context bound to isolated container execution.
func Container(agentID, branch string) *Context {
	return &Context{Mode: ModeContainer, State: StateUnscheduled, AgentID: agentID, Branch: branch}
}

// Transition validates and applies a state transition, mutating nothing
// on failure.
func (c *Context) Transition(to State, now time.Time) error {
	if !CanTransitionTo(c.State, to) {
		return fmt.Errorf("execctx: illegal transition %s -> %s", c.State, to)
	}
	if c.State == StateUnscheduled && to == StateQueued && c.StartedAt == nil {
		// no-op placeholder: StartedAt is stamped on entering Running.
	}
	if to == StateRunning && c.StartedAt == nil {
		c.StartedAt = &now
	}
	if isTerminal(to) {
		c.FinishedAt = &now
	}
	if to == StateUnscheduled {
		c.StartedAt = nil
		c.FinishedAt = nil
		c.ExitCode = nil
	}
	c.State = to
	return nil
}

// IsActive reports whether the context is mid-flight (Queued,
// Provisioning, or Running).
func (c *Context) IsActive() bool {
	switch c.State {
	case StateQueued, StateProvisioning, StateRunning:
		return true
	default:
		return false
	}
}

// IsComplete reports whether the context has reached a terminal state.
func (c *Context) IsComplete() bool {
	return isTerminal(c.State)
}

// Duration returns FinishedAt - StartedAt, or 0 if either is unset.
func (c *Context) Duration() time.Duration {
	if c.StartedAt == nil || c.FinishedAt == nil {
		return 0
	}
	return c.FinishedAt.Sub(*c.StartedAt)
}
