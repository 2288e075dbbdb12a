package relay

import "fmt"

// Sentinel errors for relay transport and connection pool operations
// (spec.md §7 PoolError/ConnectionError).
var (
	ErrCircuitOpen    = fmt.Errorf("relay: circuit breaker open")
	ErrPoolExhausted  = fmt.Errorf("relay: all connections in use for endpoint")
	ErrInvalidHandle  = fmt.Errorf("relay: connection handle invalid or already checked in")
	ErrEndpointClosed = fmt.Errorf("relay: endpoint connection closed")
)
