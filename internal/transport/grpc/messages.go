package grpcserver

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
)

// ListReadingsRequest is sent as
//
//	{"thingId": string, "limit": number, "cursor": string}
//
// limit and cursor are optional.
type ListReadingsRequest struct {
	ThingID string
	Limit   int
	Cursor  string
}

// ListReadingsResponse is sent as
//
//	{"items": [{"thingId", "timestamp", "values": {field: decimal}}], "nextCursor": string}
//
// Timestamps and decimals are strings so no precision is lost in transit.
type ListReadingsResponse struct {
	Items      []domain.Reading
	NextCursor string
}

func (r ListReadingsRequest) toStruct() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"thingId": structpb.NewStringValue(r.ThingID),
	}
	if r.Limit != 0 {
		fields["limit"] = structpb.NewNumberValue(float64(r.Limit))
	}
	if r.Cursor != "" {
		fields["cursor"] = structpb.NewStringValue(r.Cursor)
	}
	return &structpb.Struct{Fields: fields}
}

func requestFromStruct(s *structpb.Struct) (ListReadingsRequest, error) {
	var req ListReadingsRequest
	for k, v := range s.GetFields() {
		switch k {
		case "thingId":
			sv, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return req, fmt.Errorf("thingId must be a string")
			}
			req.ThingID = sv.StringValue
		case "limit":
			nv, ok := v.GetKind().(*structpb.Value_NumberValue)
			if !ok || nv.NumberValue != math.Trunc(nv.NumberValue) || math.Abs(nv.NumberValue) > math.MaxInt32 {
				return req, fmt.Errorf("limit must be an integer")
			}
			req.Limit = int(nv.NumberValue)
		case "cursor":
			sv, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return req, fmt.Errorf("cursor must be a string")
			}
			req.Cursor = sv.StringValue
		default:
			return req, fmt.Errorf("unknown field %q", k)
		}
	}
	return req, nil
}

func (r ListReadingsResponse) toStruct() *structpb.Struct {
	items := make([]*structpb.Value, 0, len(r.Items))
	for _, it := range r.Items {
		values := make(map[string]*structpb.Value, len(it.Values))
		for k, v := range it.Values {
			values[k] = structpb.NewStringValue(cursor.NumberLiteral(v))
		}
		items = append(items, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"thingId":   structpb.NewStringValue(it.ThingID),
			"timestamp": structpb.NewStringValue(strconv.FormatInt(it.Timestamp, 10)),
			"values":    structpb.NewStructValue(&structpb.Struct{Fields: values}),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"items":      structpb.NewListValue(&structpb.ListValue{Values: items}),
		"nextCursor": structpb.NewStringValue(r.NextCursor),
	}}
}

func responseFromStruct(s *structpb.Struct) (ListReadingsResponse, error) {
	var out ListReadingsResponse
	fields := s.GetFields()
	out.NextCursor = fields["nextCursor"].GetStringValue()

	for i, v := range fields["items"].GetListValue().GetValues() {
		item := v.GetStructValue().GetFields()
		if item == nil {
			return ListReadingsResponse{}, fmt.Errorf("item %d: not an object", i)
		}
		ts, err := strconv.ParseInt(item["timestamp"].GetStringValue(), 10, 64)
		if err != nil {
			return ListReadingsResponse{}, fmt.Errorf("item %d: timestamp: %w", i, err)
		}
		r := domain.Reading{
			ThingID:   item["thingId"].GetStringValue(),
			Timestamp: ts,
			Values:    map[string]decimal.Decimal{},
		}
		for k, fv := range item["values"].GetStructValue().GetFields() {
			d, err := decimal.NewFromString(fv.GetStringValue())
			if err != nil {
				return ListReadingsResponse{}, fmt.Errorf("item %d: value %q: %w", i, k, err)
			}
			r.Values[k] = d
		}
		out.Items = append(out.Items, r)
	}
	return out, nil
}
