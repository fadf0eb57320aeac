package dynamorepo

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/smartfarm/irrigation/internal/cursor"
)

// MarkerToKey converts a continuation marker into an ExclusiveStartKey.
func MarkerToKey(m cursor.Marker) (map[string]types.AttributeValue, error) {
	key := make(map[string]types.AttributeValue, len(m))
	for name, v := range m {
		switch v.Kind {
		case cursor.KindString:
			key[name] = &types.AttributeValueMemberS{Value: v.S}
		case cursor.KindNumber:
			key[name] = &types.AttributeValueMemberN{Value: cursor.NumberLiteral(v.N)}
		default:
			return nil, fmt.Errorf("attribute %q: unsupported kind %d", name, v.Kind)
		}
	}
	return key, nil
}

// KeyToMarker converts a LastEvaluatedKey into a continuation marker. Key
// attributes can only be S, N or B; binary keys are not used by the readings
// table and are rejected.
func KeyToMarker(key map[string]types.AttributeValue) (cursor.Marker, error) {
	m := make(cursor.Marker, len(key))
	for name, av := range key {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			m[name] = cursor.String(v.Value)
		case *types.AttributeValueMemberN:
			d, err := parseNumber(v.Value)
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", name, err)
			}
			m[name] = cursor.Number(d)
		default:
			return nil, fmt.Errorf("attribute %q: unsupported type %T", name, av)
		}
	}
	return m, nil
}

func parseNumber(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse number %q: %w", s, err)
	}
	return d, nil
}
