package fetch

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dmv-price-tracker/internal/listing"
	"github.com/sells-group/dmv-price-tracker/pkg/rentcast"
)

// Kind tags which response a Batch came from.
type Kind int

// Batch kinds.
const (
	KindEmpty Kind = iota
	KindListings
	KindMarketSummary
)

func (k Kind) String() string {
	switch k {
	case KindListings:
		return "listings"
	case KindMarketSummary:
		return "market_summary"
	default:
		return "empty"
	}
}

// Batch is the owned result of fetching one region. The zero value is an
// empty batch.
type Batch struct {
	kind     Kind
	listings []listing.RawListing
	summary  *rentcast.MarketSummary
}

// ListingsBatch wraps a primary endpoint response.
func ListingsBatch(raw []listing.RawListing) Batch {
	return Batch{kind: KindListings, listings: raw}
}

// SummaryBatch wraps a market summary fallback response.
func SummaryBatch(ms *rentcast.MarketSummary) Batch {
	return Batch{kind: KindMarketSummary, summary: ms}
}

// EmptyBatch is a region with nothing usable.
func EmptyBatch() Batch {
	return Batch{}
}

// Kind returns the batch tag.
func (b Batch) Kind() Kind { return b.kind }

// Summary returns the market summary, or nil for other kinds.
func (b Batch) Summary() *rentcast.MarketSummary { return b.summary }

// Listings maps every kind to a listing slice. Market summaries carry no
// individual listings and map to an empty slice, as do empty batches.
func (b Batch) Listings() []listing.RawListing {
	if b.kind != KindListings || b.listings == nil {
		return []listing.RawListing{}
	}
	return b.listings
}

type cachedBatch struct {
	Kind     string                  `json:"kind"`
	Listings []listing.RawListing    `json:"listings,omitempty"`
	Summary  *rentcast.MarketSummary `json:"summary,omitempty"`
}

func encodeBatch(b Batch) ([]byte, error) {
	data, err := json.Marshal(cachedBatch{Kind: b.kind.String(), Listings: b.listings, Summary: b.summary})
	return data, eris.Wrap(err, "fetch: encode cached batch")
}

func decodeBatch(data []byte) (Batch, error) {
	var cb cachedBatch
	if err := json.Unmarshal(data, &cb); err != nil {
		return Batch{}, eris.Wrap(err, "fetch: decode cached batch")
	}
	switch cb.Kind {
	case KindListings.String():
		if cb.Listings == nil {
			cb.Listings = []listing.RawListing{}
		}
		return ListingsBatch(cb.Listings), nil
	case KindMarketSummary.String():
		return SummaryBatch(cb.Summary), nil
	case KindEmpty.String():
		return EmptyBatch(), nil
	default:
		return Batch{}, eris.Errorf("fetch: unknown cached batch kind %q", cb.Kind)
	}
}
