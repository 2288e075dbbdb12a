// Package marketplace implements the NIP-90 compute marketplace client
// (spec.md §4.3): quote -> submit -> bid -> select -> complete, against
// a relay transport collaborator (internal/relay).
//
// Grounded on original_source/crates/autopilot/src/compute/buyer.rs,
// ported from a tokio/HashMap-backed ComputeBuyer into a sync.Mutex over
// a Go map. Request ids are "<kind>-<uuid>" (github.com/google/uuid)
// instead of a raw nanosecond counter: they are unique but carry no
// ordering, and PendingJob has no submission sequence number; its only
// ordering field is SubmittedAt.
package marketplace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config configures a Buyer (spec.md §4.3 defaults).
type Config struct {
	BidTimeout         time.Duration
	JobTimeout         time.Duration
	Strategy           Strategy
	PriceBook          PriceBook
	MaxPricePremiumPct uint64
	PreferredRelays    []string
}

// DefaultConfig mirrors the teacher source's documented defaults.
func DefaultConfig() Config {
	return Config{
		BidTimeout:         30 * time.Second,
		JobTimeout:         600 * time.Second,
		Strategy:           StrategyLowestPrice,
		PriceBook:          DefaultPriceBook(),
		MaxPricePremiumPct: 20,
		PreferredRelays:    []string{"wss://relay.damus.io", "wss://relay.nostr.band", "wss://nos.lol"},
	}
}

// Request is the caller-supplied job description submitted for quoting.
type Request struct {
	Kind      string
	Resources ResourceBundle
}

// Buyer is the compute marketplace client.
type Buyer struct {
	config Config
	now    func() time.Time

	mu   sync.Mutex
	jobs map[string]*PendingJob
}

// NewBuyer constructs a Buyer with the given config.
func NewBuyer(cfg Config) *Buyer {
	return &Buyer{
		config: cfg,
		now:    time.Now,
		jobs:   make(map[string]*PendingJob),
	}
}

// Quote computes a price quote for a request via the configured PriceBook.
func (b *Buyer) Quote(req Request) Quote {
	return b.config.PriceBook.Quote(req.Kind, req.Resources)
}

// SubmitJob derives a quote, computes max_price, generates a fresh
// request id, and creates a PendingJob in WaitingForBids.
func (b *Buyer) SubmitJob(req Request) string {
	quote := b.Quote(req)
	maxPrice := MaxPrice(quote, b.config.MaxPricePremiumPct)
	requestID := req.Kind + "-" + uuid.NewString()

	job := &PendingJob{
		RequestID:   requestID,
		Kind:        req.Kind,
		MaxPrice:    maxPrice,
		Status:      JobStatus{Kind: JobWaitingForBids},
		SubmittedAt: b.now(),
	}

	b.mu.Lock()
	b.jobs[requestID] = job
	b.mu.Unlock()

	return requestID
}

// ProcessBid stores bid against requestID if the job is WaitingForBids
// and the bid is within max_price. Returns whether it was stored.
func (b *Buyer) ProcessBid(requestID string, bid ProviderBid) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[requestID]
	if !ok {
		return false, ErrJobNotFound
	}
	return job.addBid(bid), nil
}

// SelectProvider applies the configured strategy to the job's received
// bids and transitions it to Accepted{provider}. Returns ("",
// ErrNoAcceptedBids) if there are no bids to select from.
func (b *Buyer) SelectProvider(requestID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[requestID]
	if !ok {
		return "", ErrJobNotFound
	}

	provider, ok := job.selectProvider(b.config.Strategy)
	if !ok {
		return "", ErrNoAcceptedBids
	}

	job.Status = JobStatus{Kind: JobAccepted, Provider: provider}
	return provider, nil
}

// IsBidTimeout reports whether requestID has exceeded BidTimeout while
// still WaitingForBids.
func (b *Buyer) IsBidTimeout(requestID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[requestID]
	if !ok {
		return false
	}
	return job.Status.Kind == JobWaitingForBids && job.elapsed(b.now()) > b.config.BidTimeout
}

// IsJobTimeout reports whether requestID has exceeded JobTimeout while
// Accepted or Processing.
func (b *Buyer) IsJobTimeout(requestID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[requestID]
	if !ok {
		return false
	}
	if job.Status.Kind != JobAccepted && job.Status.Kind != JobProcessing {
		return false
	}
	return job.elapsed(b.now()) > b.config.JobTimeout
}

// MarkProcessing transitions an Accepted job to Processing.
func (b *Buyer) MarkProcessing(requestID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[requestID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Kind != JobAccepted {
		return ErrJobTerminal
	}
	job.Status = JobStatus{Kind: JobProcessing, Provider: job.Status.Provider}
	return nil
}

// CompleteJob terminally transitions requestID to Completed.
func (b *Buyer) CompleteJob(requestID, provider string, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[requestID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.isTerminal() {
		return ErrJobTerminal
	}
	job.Status = JobStatus{Kind: JobCompleted, Provider: provider, Amount: amount}
	return nil
}

// FailJob terminally transitions requestID to Failed.
func (b *Buyer) FailJob(requestID, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[requestID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.isTerminal() {
		return ErrJobTerminal
	}
	job.Status = JobStatus{Kind: JobFailed, Reason: reason}
	return nil
}

// RemoveJob deletes a job record, typically called after it reaches a
// terminal state and has been reported to its owner.
func (b *Buyer) RemoveJob(requestID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.jobs, requestID)
}

// Job returns a copy of the job record, or nil if not found.
func (b *Buyer) Job(requestID string) *PendingJob {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[requestID]
	if !ok {
		return nil
	}
	cp := *job
	cp.Bids = append([]ProviderBid(nil), job.Bids...)
	return &cp
}

// PendingJobIDs returns the request ids of all tracked jobs.
func (b *Buyer) PendingJobIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]string, 0, len(b.jobs))
	for id := range b.jobs {
		ids = append(ids, id)
	}
	return ids
}

// PendingCount returns the number of tracked jobs.
func (b *Buyer) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}
