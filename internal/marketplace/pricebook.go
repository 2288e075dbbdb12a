package marketplace

// ResourceBundle describes the resources a job request would consume;
// a PriceBook maps job kind + resource bundle to a sats quote.
type ResourceBundle struct {
	TimeSeconds      uint64
	MemoryGBMinutes  uint64
	TokenCount       uint64
	FileCount        uint64
	EmbeddingFlag    bool
}

// Quote is a priced estimate for a job (spec.md §3 Quote).
type Quote struct {
	PriceSats uint64
	JobType   string
}

// PriceBook is a deterministic quote function parameterized by job kind
// and resources (spec.md GLOSSARY).
type PriceBook struct {
	// Per-unit sats rates; a real deployment would source these from a
	// market-data feed, but spec.md specifies only that PriceBook is
	// "deterministic", not its concrete rate table, so fixed rates are
	// used here.
	SatsPerSecond       uint64
	SatsPerGBMinute     uint64
	SatsPerThousandToks uint64
	SatsPerFile         uint64
	EmbeddingSurcharge  uint64
}

// DefaultPriceBook returns a PriceBook with modest, documented rates.
func DefaultPriceBook() PriceBook {
	return PriceBook{
		SatsPerSecond:       1,
		SatsPerGBMinute:     2,
		SatsPerThousandToks: 1,
		SatsPerFile:         5,
		EmbeddingSurcharge:  50,
	}
}

// Quote computes a deterministic sats price for the given job kind and
// resource bundle.
func (pb PriceBook) Quote(jobType string, r ResourceBundle) Quote {
	price := r.TimeSeconds*pb.SatsPerSecond +
		r.MemoryGBMinutes*pb.SatsPerGBMinute +
		(r.TokenCount/1000)*pb.SatsPerThousandToks +
		r.FileCount*pb.SatsPerFile
	if r.EmbeddingFlag {
		price += pb.EmbeddingSurcharge
	}
	return Quote{PriceSats: price, JobType: jobType}
}

// MaxPrice returns quote + quote*premiumPct/100 (spec.md §4.3).
func MaxPrice(quote Quote, premiumPct uint64) uint64 {
	return quote.PriceSats + (quote.PriceSats*premiumPct)/100
}
