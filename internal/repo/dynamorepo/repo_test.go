package dynamorepo

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/repo"
	"github.com/smartfarm/irrigation/internal/service"
)

// fakeTable answers descending queries over one partition the way DynamoDB
// does: LastEvaluatedKey is set whenever Limit items were returned.
type fakeTable struct {
	thingID string
	n       int
	inputs  []*dynamodb.QueryInput
	err     error
}

func (f *fakeTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	if pk != f.thingID {
		return &dynamodb.QueryOutput{}, nil
	}

	start := f.n + 1
	if in.ExclusiveStartKey != nil {
		n, err := strconv.Atoi(in.ExclusiveStartKey["timestamp"].(*types.AttributeValueMemberN).Value)
		if err != nil {
			return nil, err
		}
		start = n
	}
	limit := int(aws.ToInt32(in.Limit))

	out := &dynamodb.QueryOutput{}
	for ts := start - 1; ts >= 1 && len(out.Items) < limit; ts-- {
		out.Items = append(out.Items, map[string]types.AttributeValue{
			"thingId":   &types.AttributeValueMemberS{Value: f.thingID},
			"timestamp": &types.AttributeValueMemberN{Value: strconv.Itoa(ts)},
			"readings": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
				"temperature": &types.AttributeValueMemberN{Value: strconv.Itoa(ts) + ".345"},
				"label":       &types.AttributeValueMemberS{Value: "ignored"},
			}},
		})
	}
	if len(out.Items) == limit {
		tail := out.Items[len(out.Items)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"thingId":   tail["thingId"],
			"timestamp": tail["timestamp"],
		}
	}
	return out, nil
}

func TestRepo_QueryRangeBuildsDescendingQuery(t *testing.T) {
	t.Parallel()

	ft := &fakeTable{thingID: "device-1", n: 10}
	r := New(ft, "")

	res, err := r.QueryRange(context.Background(), repo.RangeQuery{PartitionKey: "device-1", Limit: 3})
	require.NoError(t, err)
	require.Len(t, ft.inputs, 1)

	in := ft.inputs[0]
	assert.Equal(t, DefaultTable, aws.ToString(in.TableName))
	assert.False(t, aws.ToBool(in.ScanIndexForward))
	assert.Equal(t, int32(3), aws.ToInt32(in.Limit))
	assert.Equal(t, "thingId", in.ExpressionAttributeNames["#pk"])
	assert.Nil(t, in.ExclusiveStartKey)

	require.Len(t, res.Items, 3)
	assert.Equal(t, int64(10), res.Items[0].Timestamp)
	assert.Equal(t, "10.345", res.Items[0].Values["temperature"].String())
	assert.NotContains(t, res.Items[0].Values, "label")
	assert.True(t, res.LastKey.Equal(cursor.DefaultKeySchema.Position("device-1", 8)))
}

func TestRepo_PaginatesThroughService(t *testing.T) {
	t.Parallel()

	svc := service.NewReadingService(New(&fakeTable{thingID: "device-1", n: 120}, "IoTDeviceReadings"))

	var (
		got   []int64
		token string
	)
	for i := 0; i < 10; i++ {
		p, err := svc.ListReadingsPage(context.Background(), service.PageRequest{PartitionKey: "device-1", Limit: 50, Cursor: token})
		require.NoError(t, err)
		for _, it := range p.Items {
			got = append(got, it.Timestamp)
		}
		if p.NextCursor == "" {
			break
		}
		token = p.NextCursor
	}
	require.Len(t, got, 120)
	assert.Equal(t, int64(120), got[0])
	assert.Equal(t, int64(1), got[119])
}

func TestRepo_StartKeyCarriesOnlyKeyAttributes(t *testing.T) {
	t.Parallel()

	ft := &fakeTable{thingID: "device-1", n: 10}
	r := New(ft, "")
	start := cursor.DefaultKeySchema.Position("device-1", 6)
	start["moisture"] = cursor.Number(decimal.New(12345, -3))
	start["gsi1pk"] = cursor.String("forged")

	res, err := r.QueryRange(context.Background(), repo.RangeQuery{PartitionKey: "device-1", Limit: 2, StartAfter: start})
	require.NoError(t, err)
	require.Len(t, ft.inputs, 1)

	key := ft.inputs[0].ExclusiveStartKey
	assert.Len(t, key, 2)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "device-1"}, key["thingId"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "6"}, key["timestamp"])
	require.Len(t, res.Items, 2)
	assert.Equal(t, int64(5), res.Items[0].Timestamp)
}

func TestRepo_UpstreamErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("ProvisionedThroughputExceededException")
	r := New(&fakeTable{err: boom}, "t")
	_, err := r.QueryRange(context.Background(), repo.RangeQuery{PartitionKey: "device-1", Limit: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestMarkerToKey_KeepsDecimalLiteral(t *testing.T) {
	t.Parallel()

	moisture, err := decimal.NewFromString("12.345")
	require.NoError(t, err)
	key, err := MarkerToKey(cursor.Marker{
		"thingId":   cursor.String("device-1"),
		"timestamp": cursor.Int(1700000000000),
		"moisture":  cursor.Number(moisture),
	})
	require.NoError(t, err)

	assert.Equal(t, "12.345", key["moisture"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "1700000000000", key["timestamp"].(*types.AttributeValueMemberN).Value)

	back, err := KeyToMarker(key)
	require.NoError(t, err)
	n, ok := back.NumberAttr("moisture")
	require.True(t, ok)
	assert.Equal(t, "12.345", n.String())
}

func TestKeyToMarker_RejectsBinary(t *testing.T) {
	t.Parallel()

	_, err := KeyToMarker(map[string]types.AttributeValue{
		"thingId": &types.AttributeValueMemberB{Value: []byte("x")},
	})
	require.Error(t, err)
}
