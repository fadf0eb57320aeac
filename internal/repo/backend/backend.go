// Package backend opens the reading store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/smartfarm/irrigation/internal/config"
	"github.com/smartfarm/irrigation/internal/repo"
	"github.com/smartfarm/irrigation/internal/repo/csvrepo"
	"github.com/smartfarm/irrigation/internal/repo/dynamorepo"
	"github.com/smartfarm/irrigation/internal/repo/influxrepo"
	"github.com/smartfarm/irrigation/internal/repo/sqliterepo"
)

// Backend is an opened store. SQLite is set when the sqlite backend is in use,
// so callers can also use it as the schedule store.
type Backend struct {
	Readings repo.ReadingRepository
	SQLite   *sqliterepo.Store

	close func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open constructs the store once; the returned handle is meant to live for
// the whole process.
func Open(ctx context.Context, cfg config.Store) (*Backend, error) {
	switch cfg.Backend {
	case "memory":
		return &Backend{Readings: csvrepo.New(nil)}, nil

	case "csv":
		r, err := csvrepo.NewFromFile(cfg.CSVPath)
		if err != nil {
			// CSV may contain a few bad rows. We keep going if we have usable readings.
			log.Printf("warning: %v", err)
		}
		if r == nil {
			return nil, fmt.Errorf("failed to load csv from %q", cfg.CSVPath)
		}
		return &Backend{Readings: r}, nil

	case "sqlite":
		s, err := sqliterepo.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{Readings: s, SQLite: s, close: s.Close}, nil

	case "dynamodb":
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return &Backend{Readings: dynamorepo.New(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable)}, nil

	case "influxdb":
		client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		health, err := client.Health(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
		}
		if health.Status != "pass" {
			log.Printf("warning: InfluxDB health status %q", health.Status)
		}
		return &Backend{
			Readings: influxrepo.New(client, cfg.InfluxOrg, cfg.InfluxBucket),
			close: func() error {
				client.Close()
				return nil
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
