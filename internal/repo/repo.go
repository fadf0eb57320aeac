package repo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
)

// RangeQuery selects one partition's readings, newest first.
type RangeQuery struct {
	PartitionKey string
	Limit        int
	// StartAfter is the exclusive start position; nil starts at the newest reading.
	StartAfter cursor.Marker
}

// RangeResult holds at most Limit readings in descending sort-key order.
// LastKey is non-empty iff the range was truncated and more readings may follow.
type RangeResult struct {
	Items   []domain.Reading
	LastKey cursor.Marker
}

// ReadingRepository is an ordered time-series store keyed by (partition, sort key).
type ReadingRepository interface {
	// QueryRange issues exactly one range query. Store failures are returned
	// as-is; the caller classifies them.
	QueryRange(ctx context.Context, q RangeQuery) (RangeResult, error)
}

// ErrInvalidStart reports a StartAfter marker whose key attributes do not fit
// the readings table: wrong partition, or a sort key that is not an int64.
var ErrInvalidStart = errors.New("invalid start position")

// StartSortKey extracts the exclusive upper bound from q.StartAfter.
// ok is false when the query starts at the newest reading.
func StartSortKey(q RangeQuery, ks cursor.KeySchema) (ts int64, ok bool, err error) {
	if q.StartAfter.Empty() {
		return 0, false, nil
	}
	pk, found := q.StartAfter.StringAttr(ks.PartitionKey)
	if !found {
		return 0, false, fmt.Errorf("%w: %s must be a string", ErrInvalidStart, ks.PartitionKey)
	}
	if pk != q.PartitionKey {
		return 0, false, fmt.Errorf("%w: cursor belongs to partition %q", ErrInvalidStart, pk)
	}
	n, found := q.StartAfter.NumberAttr(ks.SortKey)
	if !found {
		return 0, false, fmt.Errorf("%w: %s must be a number", ErrInvalidStart, ks.SortKey)
	}
	if !n.IsInteger() {
		return 0, false, fmt.Errorf("%w: %s must be integral, got %s", ErrInvalidStart, ks.SortKey, n)
	}
	if n.LessThan(minSortKey) || n.GreaterThan(maxSortKey) {
		return 0, false, fmt.Errorf("%w: %s %s out of range", ErrInvalidStart, ks.SortKey, n)
	}
	return n.IntPart(), true, nil
}

var (
	minSortKey = decimal.NewFromInt(math.MinInt64)
	maxSortKey = decimal.NewFromInt(math.MaxInt64)
)
