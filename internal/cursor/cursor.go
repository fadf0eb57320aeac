// Package cursor converts a store's native "last evaluated key" into an opaque,
// URL-safe continuation token and back.
//
// Tokens are unpadded URL-safe base64 over canonical JSON: object keys sorted,
// numbers written as their exact decimal literal. Numbers are restored as
// decimal.Decimal so a boundary key never drifts through float64.
package cursor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrMalformed is returned by Decode for any token that cannot be turned back
// into a marker. Callers must not reuse such a token.
var ErrMalformed = errors.New("malformed cursor")

type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
)

// Value is one key attribute of a marker: either a string or an exact number.
type Value struct {
	Kind Kind
	S    string
	N    decimal.Decimal
}

func String(s string) Value { return Value{Kind: KindString, S: s} }

func Number(n decimal.Decimal) Value { return Value{Kind: KindNumber, N: n} }

// Int is shorthand for integral sort keys.
func Int(n int64) Value { return Number(decimal.NewFromInt(n)) }

// Equal reports whether both values have the same kind and the same exact
// representation. Numbers compare on their decimal text, so 12.345 and
// 12.3450 are distinct.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.S == o.S
	case KindNumber:
		return v.N.Equal(o.N) && v.N.Exponent() == o.N.Exponent()
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return fmt.Sprintf("%q", v.S)
	case KindNumber:
		return v.N.String()
	}
	return "<invalid>"
}

// Marker mirrors the store's continuation key: attribute name to value.
// Markers are never mutated after construction.
type Marker map[string]Value

func (m Marker) Empty() bool { return len(m) == 0 }

// Keys returns attribute names in canonical (sorted) order.
func (m Marker) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Marker) StringAttr(name string) (string, bool) {
	v, ok := m[name]
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.S, true
}

func (m Marker) NumberAttr(name string) (decimal.Decimal, bool) {
	v, ok := m[name]
	if !ok || v.Kind != KindNumber {
		return decimal.Decimal{}, false
	}
	return v.N, true
}

// Equal reports whether both markers hold the same attributes with exactly
// equal values.
func (m Marker) Equal(o Marker) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// KeySchema names the key attributes every marker must carry.
type KeySchema struct {
	PartitionKey string
	SortKey      string
}

// DefaultKeySchema matches the readings table layout.
var DefaultKeySchema = KeySchema{PartitionKey: "thingId", SortKey: "timestamp"}

// Position builds the marker for the item at (partition, sort).
func (ks KeySchema) Position(partition string, sortKey int64) Marker {
	return Marker{
		ks.PartitionKey: String(partition),
		ks.SortKey:      Int(sortKey),
	}
}

// KeyOf returns the subset of m holding only the schema's key attributes.
func (ks KeySchema) KeyOf(m Marker) Marker {
	key := make(Marker, 2)
	for _, name := range []string{ks.PartitionKey, ks.SortKey} {
		if v, ok := m[name]; ok {
			key[name] = v
		}
	}
	return key
}
