package cursor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Codec turns markers into tokens and back, validating that decoded markers
// carry the schema's key attributes.
type Codec struct {
	Schema KeySchema
}

func NewCodec(schema KeySchema) *Codec {
	return &Codec{Schema: schema}
}

// Encode returns the token for m, or "" when m is empty.
func (c *Codec) Encode(m Marker) (string, error) {
	if m.Empty() {
		return "", nil
	}
	text, err := MarshalCanonical(m)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(text), nil
}

// Decode parses a token produced by Encode. Tokens in the standard base64
// alphabet (padded or not) are accepted as well.
func (c *Codec) Decode(token string) (Marker, error) {
	raw, err := decodeTransport(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m, err := UnmarshalCanonical(raw)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{c.Schema.PartitionKey, c.Schema.SortKey} {
		if key == "" {
			continue
		}
		if _, ok := m[key]; !ok {
			return nil, fmt.Errorf("%w: missing key attribute %q", ErrMalformed, key)
		}
	}
	return m, nil
}

func decodeTransport(token string) ([]byte, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	if strings.ContainsAny(token, "-_") {
		return base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	}
	if strings.HasSuffix(token, "=") {
		return base64.StdEncoding.DecodeString(token)
	}
	if b, err := base64.RawURLEncoding.DecodeString(token); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(token)
}

// MarshalCanonical writes m as a JSON object with sorted keys. Strings are
// JSON strings; numbers are the exact decimal literal, exponent preserved.
func MarshalCanonical(m Marker) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		v := m[k]
		switch v.Kind {
		case KindString:
			sb, err := json.Marshal(v.S)
			if err != nil {
				return nil, err
			}
			buf.Write(sb)
		case KindNumber:
			buf.WriteString(NumberLiteral(v.N))
		default:
			return nil, fmt.Errorf("attribute %q: unsupported value kind %d", k, v.Kind)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalCanonical parses the text written by MarshalCanonical. Any input
// that is not a flat object of strings and numbers is ErrMalformed.
func UnmarshalCanonical(text []byte) (Marker, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	m := make(Marker, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			m[k] = String(val)
		case json.Number:
			d, err := parseBoundedNumber(val.String())
			if err != nil {
				return nil, fmt.Errorf("%w: attribute %q: %v", ErrMalformed, k, err)
			}
			m[k] = Number(d)
		default:
			return nil, fmt.Errorf("%w: attribute %q has unsupported type %T", ErrMalformed, k, v)
		}
	}
	return m, nil
}

// Number literals in a token are bounded in length and exponent so that
// rendering or comparing them stays proportional to the token size.
const (
	maxNumberLen      = 64
	maxNumberExponent = 64
)

func parseBoundedNumber(text string) (decimal.Decimal, error) {
	if len(text) > maxNumberLen {
		return decimal.Decimal{}, fmt.Errorf("number literal longer than %d bytes", maxNumberLen)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if exp := d.Exponent(); exp < -maxNumberExponent || exp > maxNumberExponent {
		return decimal.Decimal{}, fmt.Errorf("number %s: exponent %d out of range", text, exp)
	}
	return d, nil
}

// NumberLiteral renders d so that parsing the result yields the same
// coefficient and exponent: 12.3450 stays 12.3450, 1e3 stays 1e3.
func NumberLiteral(d decimal.Decimal) string {
	exp := d.Exponent()
	switch {
	case exp < 0:
		return d.StringFixed(-exp)
	case exp == 0:
		return d.Coefficient().String()
	default:
		return d.Coefficient().String() + "e" + strconv.Itoa(int(exp))
	}
}
