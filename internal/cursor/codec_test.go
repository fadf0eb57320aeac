package cursor

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestCodec_RoundTripPreservesDecimals(t *testing.T) {
	t.Parallel()

	c := NewCodec(DefaultKeySchema)
	m := Marker{
		"thingId":   String("device-1"),
		"timestamp": Int(1700000000123),
		"moisture":  Number(mustDecimal(t, "12.345")),
		"trailing":  Number(mustDecimal(t, "12.3450")),
		"huge":      Number(mustDecimal(t, "123456789012345678901234567890.000000001")),
		"scaled":    Number(mustDecimal(t, "1e3")),
		"negative":  Number(mustDecimal(t, "-0.1")),
	}

	token, err := c.Encode(m)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := c.Decode(token)
	require.NoError(t, err)
	assert.True(t, m.Equal(got), "got %v want %v", got, m)

	moisture, ok := got.NumberAttr("moisture")
	require.True(t, ok)
	assert.Equal(t, "12.345", moisture.String())
	trailing, _ := got.NumberAttr("trailing")
	assert.Equal(t, "12.3450", NumberLiteral(trailing))
}

func TestCodec_EncodeIsDeterministic(t *testing.T) {
	t.Parallel()

	c := NewCodec(DefaultKeySchema)
	a := Marker{"timestamp": Int(42), "thingId": String("d"), "z": String("last")}
	b := Marker{"z": String("last"), "thingId": String("d"), "timestamp": Int(42)}

	ta, err := c.Encode(a)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		tb, err := c.Encode(b)
		require.NoError(t, err)
		require.Equal(t, ta, tb)
	}
}

func TestCodec_CanonicalTextIsSortedJSON(t *testing.T) {
	t.Parallel()

	text, err := MarshalCanonical(Marker{
		"timestamp": Int(71),
		"thingId":   String("device-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"thingId":"device-1","timestamp":71}`, string(text))
}

func TestCodec_EncodeEmptyMarker(t *testing.T) {
	t.Parallel()

	token, err := NewCodec(DefaultKeySchema).Encode(nil)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestCodec_TokenIsURLSafe(t *testing.T) {
	t.Parallel()

	// "???" and ">>>" push the base64 output into the '+' and '/' range.
	token, err := NewCodec(DefaultKeySchema).Encode(Marker{
		"thingId":   String("???>>>???"),
		"timestamp": Int(1),
	})
	require.NoError(t, err)
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")
}

func TestCodec_AcceptsStandardBase64(t *testing.T) {
	t.Parallel()

	token := base64.StdEncoding.EncodeToString([]byte(`{"thingId":"device-1","timestamp":1700000000000}`))
	got, err := NewCodec(DefaultKeySchema).Decode(token)
	require.NoError(t, err)

	id, ok := got.StringAttr("thingId")
	require.True(t, ok)
	assert.Equal(t, "device-1", id)
	ts, ok := got.NumberAttr("timestamp")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), ts.IntPart())
}

func TestCodec_DecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	cases := map[string]string{
		"not base64":        "not-base64!!",
		"empty":             "",
		"not json":          enc("hello"),
		"array":             enc(`[1,2]`),
		"null":              enc(`null`),
		"nested object":     enc(`{"thingId":"d","timestamp":1,"x":{"y":1}}`),
		"bool":              enc(`{"thingId":"d","timestamp":true}`),
		"missing sort key":  enc(`{"thingId":"d"}`),
		"missing partition": enc(`{"timestamp":5}`),
		"trailing data":     enc(`{"thingId":"d","timestamp":1}{}`),
		"tiny exponent":     enc(`{"thingId":"d","timestamp":0e-300000000}`),
		"huge exponent":     enc(`{"thingId":"d","timestamp":1e300000000}`),
		"long literal":      enc(`{"thingId":"d","timestamp":` + strings.Repeat("9", 65) + `}`),
	}
	c := NewCodec(DefaultKeySchema)
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := c.Decode(token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "err=%v", err)
		})
	}
}

func TestValue_EqualDistinguishesRepresentation(t *testing.T) {
	t.Parallel()

	a := Number(mustDecimal(t, "12.345"))
	b := Number(mustDecimal(t, "12.3450"))
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(Number(mustDecimal(t, "12.345"))))
	assert.False(t, String("1").Equal(Int(1)))
}
