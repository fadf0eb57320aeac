package cli

import (
	"context"
	"fmt"
	"os"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/spf13/cobra"

	"github.com/smartfarm/irrigation/internal/config"
	"github.com/smartfarm/irrigation/internal/domain"
	"github.com/smartfarm/irrigation/internal/repo/csvrepo"
	"github.com/smartfarm/irrigation/internal/repo/influxrepo"
	"github.com/smartfarm/irrigation/internal/scheduler"
)

// readingWriter is satisfied by *sqliterepo.Store and *influxrepo.Repo.
type readingWriter interface {
	PutReadings(ctx context.Context, readings []domain.Reading) error
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var readingsPath, schedulesPath, readingsTo string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load readings (CSV) and devices/schedules (YAML) into SQLite",
		Long: `Load readings and schedules into the SQLite store.

The readings CSV header is thingId,timestamp,<field>... and the schedules
file lists devices with their schedules. Rows that fail to parse are
reported and skipped. With --readings-to influxdb the readings go to the
bucket configured by INFLUXDB_*; schedules always go to SQLite.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if readingsPath == "" && schedulesPath == "" {
				return fmt.Errorf("nothing to seed: pass --readings and/or --schedules")
			}
			store, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if readingsPath != "" {
				readings, err := loadReadings(readingsPath)
				if err != nil && len(readings) == 0 {
					return err
				}
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
				var w readingWriter = store
				switch readingsTo {
				case "sqlite":
				case "influxdb":
					iw, closeFn, err := openInflux(ctx)
					if err != nil {
						return err
					}
					defer closeFn()
					w = iw
				default:
					return fmt.Errorf("--readings-to %q: want sqlite or influxdb", readingsTo)
				}
				if err := w.PutReadings(ctx, readings); err != nil {
					return err
				}
				fmt.Fprintf(out, "seeded %d readings into %s\n", len(readings), readingsTo)
			}

			if schedulesPath != "" {
				f, err := os.Open(schedulesPath)
				if err != nil {
					return err
				}
				defer f.Close()
				devices, schedules, err := scheduler.ParseSeed(f)
				if err != nil {
					return err
				}
				if err := scheduler.Seed(ctx, store, devices, schedules); err != nil {
					return err
				}
				fmt.Fprintf(out, "seeded %d devices, %d schedules\n", len(devices), len(schedules))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&readingsPath, "readings", "", "readings CSV file")
	cmd.Flags().StringVar(&schedulesPath, "schedules", "", "devices and schedules YAML file")
	cmd.Flags().StringVar(&readingsTo, "readings-to", "sqlite", "readings destination (sqlite|influxdb)")
	return cmd
}

func loadReadings(path string) ([]domain.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	readings, err := csvrepo.ParseReadingsCSV(f)
	if err != nil {
		return readings, fmt.Errorf("parse %s: %w", path, err)
	}
	return readings, nil
}

func openInflux(ctx context.Context) (*influxrepo.Repo, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	st := cfg.Store
	if st.InfluxURL == "" || st.InfluxToken == "" || st.InfluxOrg == "" {
		return nil, nil, fmt.Errorf("set INFLUXDB_URL, INFLUXDB_TOKEN and INFLUXDB_ORG to seed InfluxDB")
	}
	client := influxdb2.NewClient(st.InfluxURL, st.InfluxToken)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	return influxrepo.New(client, st.InfluxOrg, st.InfluxBucket), client.Close, nil
}
