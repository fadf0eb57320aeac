package csvrepo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
	"github.com/smartfarm/irrigation/internal/repo"
)

func readings(thingID string, from, to int64) []domain.Reading {
	var out []domain.Reading
	for ts := from; ts <= to; ts++ {
		out = append(out, domain.Reading{
			ThingID:   thingID,
			Timestamp: ts,
			Values:    map[string]decimal.Decimal{"temperature": decimal.NewFromInt(ts)},
		})
	}
	return out
}

func TestRepo_QueryRangeDescendingWithLastKey(t *testing.T) {
	t.Parallel()

	r := New(append(readings("device-1", 1, 5), readings("device-2", 1, 3)...))

	res, err := r.QueryRange(context.Background(), repo.RangeQuery{PartitionKey: "device-1", Limit: 2})
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if got, want := len(res.Items), 2; got != want {
		t.Fatalf("len(items)=%d want %d", got, want)
	}
	if res.Items[0].Timestamp != 5 || res.Items[1].Timestamp != 4 {
		t.Fatalf("unexpected order: %d, %d", res.Items[0].Timestamp, res.Items[1].Timestamp)
	}
	want := cursor.DefaultKeySchema.Position("device-1", 4)
	if !res.LastKey.Equal(want) {
		t.Fatalf("LastKey=%v want %v", res.LastKey, want)
	}

	res, err = r.QueryRange(context.Background(), repo.RangeQuery{PartitionKey: "device-1", Limit: 10, StartAfter: res.LastKey})
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if got, want := len(res.Items), 3; got != want {
		t.Fatalf("len(items)=%d want %d", got, want)
	}
	if res.Items[0].Timestamp != 3 || res.Items[2].Timestamp != 1 {
		t.Fatalf("unexpected page: %+v", res.Items)
	}
	if !res.LastKey.Empty() {
		t.Fatalf("expected exhausted range, got LastKey=%v", res.LastKey)
	}
}

func TestRepo_QueryRangeExactFitHasNoLastKey(t *testing.T) {
	t.Parallel()

	r := New(readings("device-1", 1, 4))
	res, err := r.QueryRange(context.Background(), repo.RangeQuery{PartitionKey: "device-1", Limit: 4})
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if !res.LastKey.Empty() {
		t.Fatalf("LastKey=%v want empty", res.LastKey)
	}
}

func TestRepo_QueryRangeUnknownPartition(t *testing.T) {
	t.Parallel()

	r := New(readings("device-1", 1, 4))
	res, err := r.QueryRange(context.Background(), repo.RangeQuery{PartitionKey: "nope", Limit: 4})
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(res.Items) != 0 || !res.LastKey.Empty() {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestRepo_QueryRangeRejectsForeignCursor(t *testing.T) {
	t.Parallel()

	r := New(readings("device-1", 1, 4))
	_, err := r.QueryRange(context.Background(), repo.RangeQuery{
		PartitionKey: "device-1",
		Limit:        4,
		StartAfter:   cursor.DefaultKeySchema.Position("device-2", 3),
	})
	if err == nil {
		t.Fatalf("expected error for cursor from another partition")
	}
}
