package influxrepo

import (
	"context"
	"fmt"
	"log"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/shopspring/decimal"

	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
	"github.com/smartfarm/irrigation/internal/repo"
)

const DefaultMeasurement = "sensor_data"

var _ repo.ReadingRepository = (*Repo)(nil)

// fluxQuerier is the part of api.QueryAPI the repository uses.
type fluxQuerier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// Repo reads readings from an InfluxDB bucket. The sort key is the point time
// in epoch milliseconds; the partition key is the thingId tag. Influx stores
// fields as float64, so values are only as exact as the written floats.
type Repo struct {
	queryAPI    fluxQuerier
	writeAPI    api.WriteAPIBlocking
	bucket      string
	measurement string
	schema      cursor.KeySchema
}

func New(client influxdb2.Client, org, bucket string) *Repo {
	return &Repo{
		queryAPI:    client.QueryAPI(org),
		writeAPI:    client.WriteAPIBlocking(org, bucket),
		bucket:      bucket,
		measurement: DefaultMeasurement,
		schema:      cursor.DefaultKeySchema,
	}
}

func (r *Repo) QueryRange(ctx context.Context, q repo.RangeQuery) (repo.RangeResult, error) {
	start, bounded, err := repo.StartSortKey(q, r.schema)
	if err != nil {
		return repo.RangeResult{}, err
	}
	var stop *time.Time
	if bounded {
		t := time.UnixMilli(start).UTC()
		stop = &t
	}
	flux := buildRangeQuery(r.bucket, r.measurement, r.schema.PartitionKey, q.PartitionKey, stop, q.Limit+1)

	result, err := r.queryAPI.Query(ctx, flux)
	if err != nil {
		return repo.RangeResult{}, fmt.Errorf("error querying InfluxDB: %w", err)
	}
	defer result.Close()

	items := make([]domain.Reading, 0, q.Limit)
	more := false
	for result.Next() {
		if len(items) == q.Limit {
			more = true
			break
		}
		record := result.Record()
		rd := domain.Reading{
			ThingID:   q.PartitionKey,
			Timestamp: record.Time().UnixMilli(),
			Values:    map[string]decimal.Decimal{},
		}
		for k, v := range record.Values() {
			if isSystemColumn(k) || k == r.schema.PartitionKey {
				continue
			}
			switch val := v.(type) {
			case float64:
				rd.Values[k] = decimal.NewFromFloat(val)
			case int64:
				rd.Values[k] = decimal.NewFromInt(val)
			}
		}
		items = append(items, rd)
	}
	if result.Err() != nil {
		return repo.RangeResult{}, fmt.Errorf("query error: %w", result.Err())
	}

	var last cursor.Marker
	if more {
		tail := items[len(items)-1]
		last = r.schema.Position(tail.ThingID, tail.Timestamp)
	}
	return repo.RangeResult{Items: items, LastKey: last}, nil
}

// PutReadings writes one point per reading, tagged with its thingId.
func (r *Repo) PutReadings(ctx context.Context, readings []domain.Reading) error {
	for _, rd := range readings {
		fields := make(map[string]interface{}, len(rd.Values))
		for k, v := range rd.Values {
			fields[k] = v.InexactFloat64()
		}
		p := influxdb2.NewPoint(
			r.measurement,
			map[string]string{r.schema.PartitionKey: rd.ThingID},
			fields,
			time.UnixMilli(rd.Timestamp),
		)
		if err := r.writeAPI.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("error writing to InfluxDB: %w", err)
		}
	}
	log.Printf("wrote %d readings to InfluxDB bucket %s", len(readings), r.bucket)
	return nil
}

func isSystemColumn(k string) bool {
	switch k {
	case "result", "table", "_start", "_stop", "_time", "_measurement":
		return true
	}
	return false
}
