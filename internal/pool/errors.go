package pool

import "fmt"

// Sentinel errors for agent pool operations (spec.md §7).
var (
	// ErrPoolFull is returned by AddAgent when the pool is at capacity.
	ErrPoolFull = fmt.Errorf("pool is at capacity")
	// ErrInvalidConfig is returned when an agent config is malformed.
	ErrInvalidConfig = fmt.Errorf("invalid agent config")
	// ErrAgentNotFound is returned when an agent id does not exist in the pool.
	ErrAgentNotFound = fmt.Errorf("agent not found")
	// ErrNotAvailable is returned by AssignTask when the agent is not Idle.
	ErrNotAvailable = fmt.Errorf("agent is not available")
	// ErrDuplicateAgent is returned by AddAgent when the id is already registered.
	ErrDuplicateAgent = fmt.Errorf("agent id already registered")
)
