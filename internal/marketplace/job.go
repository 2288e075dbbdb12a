package marketplace

import "time"

// JobStatusKind tags the PendingJob state machine variant.
type JobStatusKind string

const (
	JobWaitingForBids JobStatusKind = "waiting_for_bids"
	JobAccepted       JobStatusKind = "accepted"
	JobProcessing     JobStatusKind = "processing"
	JobCompleted      JobStatusKind = "completed"
	JobFailed         JobStatusKind = "failed"
)

// JobStatus is the PendingJob status sum type (spec.md §3 PendingJob).
type JobStatus struct {
	Kind     JobStatusKind
	Provider string // set for Accepted, Processing, Completed
	Amount   uint64 // set for Completed
	Reason   string // set for Failed
}

func (s JobStatus) isTerminal() bool {
	return s.Kind == JobCompleted || s.Kind == JobFailed
}

// ProviderBid is a provider's offer to execute a job (spec.md §3).
type ProviderBid struct {
	ProviderPubkey string
	QuotedPrice    uint64
	ETASeconds     *uint64
	Reputation     *float64
}

// PendingJob tracks one submitted marketplace request end to end.
type PendingJob struct {
	RequestID   string
	Kind        string
	MaxPrice    uint64
	Status      JobStatus
	SubmittedAt time.Time
	Bids        []ProviderBid
}

func (j *PendingJob) elapsed(now time.Time) time.Duration {
	return now.Sub(j.SubmittedAt)
}

// addBid appends a bid if the job is still WaitingForBids and the bid is
// at or below MaxPrice. Returns whether it was stored.
func (j *PendingJob) addBid(bid ProviderBid) bool {
	if j.Status.Kind != JobWaitingForBids {
		return false
	}
	if bid.QuotedPrice > j.MaxPrice {
		return false
	}
	j.Bids = append(j.Bids, bid)
	return true
}

// Strategy selects a winning bid from the accepted ones.
type Strategy string

const (
	StrategyLowestPrice Strategy = "lowest_price"
	StrategyBestValue   Strategy = "best_value"
)

// selectProvider applies strategy to j.Bids and returns the winning
// pubkey, or ("", false) if there are no bids.
func (j *PendingJob) selectProvider(strategy Strategy) (string, bool) {
	if len(j.Bids) == 0 {
		return "", false
	}
	switch strategy {
	case StrategyBestValue:
		return bestValue(j.Bids), true
	default:
		return lowestPrice(j.Bids), true
	}
}

func lowestPrice(bids []ProviderBid) string {
	best := bids[0]
	for _, b := range bids[1:] {
		if b.QuotedPrice < best.QuotedPrice {
			best = b
		}
	}
	return best.ProviderPubkey
}

// bestValue scores each bid as a weighted combination of price, ETA, and
// reputation. Weights are an implementation choice the source leaves
// undocumented (spec.md §9 Open Questions); this implementation uses
// 60% price (lower is better, normalized against the most expensive
// bid), 20% ETA (lower is better, normalized against the slowest bid),
// and 20% reputation (higher is better, reputation already in [0,1],
// defaulting to 0.5 when unset). Highest score wins.
func bestValue(bids []ProviderBid) string {
	const (
		priceWeight      = 0.6
		etaWeight        = 0.2
		reputationWeight = 0.2
	)

	var maxPrice, maxETA uint64
	for _, b := range bids {
		if b.QuotedPrice > maxPrice {
			maxPrice = b.QuotedPrice
		}
		if b.ETASeconds != nil && *b.ETASeconds > maxETA {
			maxETA = *b.ETASeconds
		}
	}

	bestIdx := 0
	bestScore := -1.0
	for i, b := range bids {
		priceScore := 1.0
		if maxPrice > 0 {
			priceScore = 1.0 - float64(b.QuotedPrice)/float64(maxPrice)
		}
		etaScore := 1.0
		if b.ETASeconds != nil && maxETA > 0 {
			etaScore = 1.0 - float64(*b.ETASeconds)/float64(maxETA)
		}
		reputationScore := 0.5
		if b.Reputation != nil {
			reputationScore = *b.Reputation
		}
		score := priceWeight*priceScore + etaWeight*etaScore + reputationWeight*reputationScore
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bids[bestIdx].ProviderPubkey
}
