package marketplace

import "fmt"

// Sentinel errors for marketplace operations (spec.md §7 MarketplaceError).
var (
	ErrSerialization = fmt.Errorf("marketplace: serialization error")
	ErrInvalidKind   = fmt.Errorf("marketplace: invalid job kind")
	ErrBidTimeout    = fmt.Errorf("marketplace: bid timeout")
	ErrJobTimeout    = fmt.Errorf("marketplace: job timeout")
	ErrJobNotFound   = fmt.Errorf("marketplace: job not found")
	ErrJobTerminal   = fmt.Errorf("marketplace: job already in a terminal state")
	ErrBidTooHigh    = fmt.Errorf("marketplace: bid exceeds max price")
	ErrNoAcceptedBids = fmt.Errorf("marketplace: no accepted bids to select from")
)
