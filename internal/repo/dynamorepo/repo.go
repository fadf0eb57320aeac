// Package dynamorepo queries the readings table in DynamoDB.
//
// Continuation markers map one-to-one onto DynamoDB's LastEvaluatedKey:
// string attributes are S, numbers are N carried as their decimal literal, so a
// boundary key is handed back to ExclusiveStartKey byte for byte.
package dynamorepo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
	"github.com/smartfarm/irrigation/internal/repo"
)

// DefaultTable is the readings table name used by the irrigation stack.
const DefaultTable = "IoTDeviceReadings"

// valuesAttr holds the per-reading sensor map.
const valuesAttr = "readings"

// QueryAPI is the subset of *dynamodb.Client the repository needs.
type QueryAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ repo.ReadingRepository = (*Repo)(nil)

type Repo struct {
	client QueryAPI
	table  string
	schema cursor.KeySchema
}

func New(client QueryAPI, table string) *Repo {
	if table == "" {
		table = DefaultTable
	}
	return &Repo{client: client, table: table, schema: cursor.DefaultKeySchema}
}

// QueryRange issues one Query. DynamoDB reports a LastEvaluatedKey whenever
// Limit items were read, so an exactly-full final page is followed by one
// empty page without a key.
func (r *Repo) QueryRange(ctx context.Context, q repo.RangeQuery) (repo.RangeResult, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": r.schema.PartitionKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: q.PartitionKey},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(q.Limit)),
	}
	if !q.StartAfter.Empty() {
		key, err := MarkerToKey(r.schema.KeyOf(q.StartAfter))
		if err != nil {
			return repo.RangeResult{}, err
		}
		in.ExclusiveStartKey = key
	}

	out, err := r.client.Query(ctx, in)
	if err != nil {
		return repo.RangeResult{}, fmt.Errorf("query %s: %w", r.table, err)
	}

	items := make([]domain.Reading, 0, len(out.Items))
	for i, item := range out.Items {
		rd, err := r.itemToReading(item)
		if err != nil {
			return repo.RangeResult{}, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, rd)
	}

	var last cursor.Marker
	if len(out.LastEvaluatedKey) > 0 {
		if last, err = KeyToMarker(out.LastEvaluatedKey); err != nil {
			return repo.RangeResult{}, fmt.Errorf("last evaluated key: %w", err)
		}
	}
	return repo.RangeResult{Items: items, LastKey: last}, nil
}

func (r *Repo) itemToReading(item map[string]types.AttributeValue) (domain.Reading, error) {
	var rd domain.Reading

	pk, ok := item[r.schema.PartitionKey].(*types.AttributeValueMemberS)
	if !ok {
		return rd, fmt.Errorf("attribute %q: want S", r.schema.PartitionKey)
	}
	rd.ThingID = pk.Value

	sk, ok := item[r.schema.SortKey].(*types.AttributeValueMemberN)
	if !ok {
		return rd, fmt.Errorf("attribute %q: want N", r.schema.SortKey)
	}
	ts, err := parseNumber(sk.Value)
	if err != nil {
		return rd, fmt.Errorf("attribute %q: %w", r.schema.SortKey, err)
	}
	if !ts.IsInteger() {
		return rd, fmt.Errorf("attribute %q: %s is not integral", r.schema.SortKey, sk.Value)
	}
	rd.Timestamp = ts.IntPart()

	rd.Values = map[string]decimal.Decimal{}
	if m, ok := item[valuesAttr].(*types.AttributeValueMemberM); ok {
		for name, av := range m.Value {
			n, ok := av.(*types.AttributeValueMemberN)
			if !ok {
				continue
			}
			d, err := parseNumber(n.Value)
			if err != nil {
				return rd, fmt.Errorf("%s.%s: %w", valuesAttr, name, err)
			}
			rd.Values[name] = d
		}
	}
	return rd, nil
}
