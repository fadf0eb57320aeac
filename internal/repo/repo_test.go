package repo

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartfarm/irrigation/internal/cursor"
)

func startAt(t *testing.T, ts string) RangeQuery {
	t.Helper()
	d, err := decimal.NewFromString(ts)
	require.NoError(t, err)
	return RangeQuery{
		PartitionKey: "device-1",
		StartAfter: cursor.Marker{
			"thingId":   cursor.String("device-1"),
			"timestamp": cursor.Number(d),
		},
	}
}

func TestStartSortKey(t *testing.T) {
	t.Parallel()

	ks := cursor.DefaultKeySchema

	_, ok, err := StartSortKey(RangeQuery{PartitionKey: "device-1"}, ks)
	require.NoError(t, err)
	assert.False(t, ok)

	for text, want := range map[string]int64{
		"71":                  71,
		"1e8":                 100000000,
		"71.000":              71,
		"9223372036854775807": 9223372036854775807,
	} {
		ts, ok, err := StartSortKey(startAt(t, text), ks)
		require.NoError(t, err, text)
		assert.True(t, ok, text)
		assert.Equal(t, want, ts, text)
	}
}

func TestStartSortKey_RejectsOutOfRange(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"18446744073709551621",
		"9223372036854775808",
		"-9223372036854775809",
		"1e19",
		"12.345",
	} {
		_, _, err := StartSortKey(startAt(t, text), cursor.DefaultKeySchema)
		assert.True(t, errors.Is(err, ErrInvalidStart), "%s: err=%v", text, err)
	}
}
