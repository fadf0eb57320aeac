package domain

import "github.com/shopspring/decimal"

// Reading is one sensor sample reported by a device.
//
// ThingID is the partition key and Timestamp the per-partition sort key
// (epoch milliseconds by convention). Values keep the exact decimal text the
// store holds; they are never round-tripped through float64.
type Reading struct {
	ThingID   string
	Timestamp int64
	Values    map[string]decimal.Decimal
}

// Value returns the named sensor value, if the reading carries it.
func (r Reading) Value(field string) (decimal.Decimal, bool) {
	v, ok := r.Values[field]
	return v, ok
}
