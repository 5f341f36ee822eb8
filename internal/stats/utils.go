package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"transfer-dashboard-backend/models"
)

// round applies half-away-from-zero rounding, or nothing when places is Unrounded
func round(d decimal.Decimal, places int32) float64 {
	if places != Unrounded {
		d = d.Round(places)
	}
	return d.InexactFloat64()
}

// median of values; even counts average the two middle values
func median(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// distinct is a set of string keys
type distinct map[string]struct{}

func (d distinct) add(k string) {
	d[k] = struct{}{}
}

func (d distinct) count() int64 {
	return int64(len(d))
}

// IsWhale reports whether a transfer moved more than WhaleThresholdUSD. Unknown amounts never qualify.
func IsWhale(t *models.NormalizedTransfer) bool {
	return t.HasAmount() && *t.AmountUSD > WhaleThresholdUSD
}

// WhaleThresholdUSD is the exclusive lower bound of a whale transfer
const WhaleThresholdUSD = 100000.0
