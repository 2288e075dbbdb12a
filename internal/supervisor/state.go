package supervisor

import "time"

// Status is the worker slot state machine (spec.md §4.1):
// Stopped -> Running -> {Running|Stopping|Restarting{attempt,next_attempt_at}|Failed{reason}|Stopped}.
type Status string

const (
	StatusStopped    Status = "stopped"
	StatusRunning    Status = "running"
	StatusStopping   Status = "stopping"
	StatusRestarting Status = "restarting"
	StatusFailed     Status = "failed"
)

// State tracks the supervised worker's lifecycle, backoff, and restart
// bookkeeping. Grounded on WorkerState/WorkerStatus in
// original_source/crates/autopilot/src/daemon/state.rs (via its use in
// supervisor.rs).
type State struct {
	Status Status
	Reason string // set when Status == Failed

	PID       int
	StartedAt time.Time

	ConsecutiveFailures int
	TotalRestarts       uint64
	CurrentBackoff      time.Duration

	Attempt       int
	NextAttemptAt time.Time
}

// NewState returns a State in Stopped with no backoff accumulated.
func NewState() *State {
	return &State{Status: StatusStopped}
}

func (s *State) recordStart(pid int, now time.Time) {
	s.PID = pid
	s.StartedAt = now
	s.Status = StatusRunning
}

func (s *State) recordCleanExit() {
	s.resetBackoff()
	s.Status = StatusStopped
	s.PID = 0
}

func (s *State) resetBackoff() {
	s.ConsecutiveFailures = 0
	s.CurrentBackoff = 0
}

// recordFailure increments the failure counter and grows the backoff,
// capped at maxBackoff.
func (s *State) recordFailure(backoffStart time.Duration, multiplier float64, maxBackoff time.Duration) {
	s.ConsecutiveFailures++
	s.TotalRestarts++

	if s.CurrentBackoff == 0 {
		s.CurrentBackoff = backoffStart
	} else {
		next := time.Duration(float64(s.CurrentBackoff) * multiplier)
		if next > maxBackoff {
			next = maxBackoff
		}
		s.CurrentBackoff = next
	}
}

// canRestart reports whether another restart attempt is permitted.
func (s *State) canRestart(maxConsecutiveRestarts int) bool {
	return s.ConsecutiveFailures <= maxConsecutiveRestarts
}

func (s *State) uptime(now time.Time) time.Duration {
	if s.Status != StatusRunning || s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
