package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartfarm/irrigation/internal/command"
	"github.com/smartfarm/irrigation/internal/config"
	"github.com/smartfarm/irrigation/internal/mqttclient"
	"github.com/smartfarm/irrigation/internal/scheduler"
	"github.com/smartfarm/irrigation/internal/service"
)

// NewTickCommand creates the tick command.
func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		at     string
		tz     string
		field  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler pass against the SQLite store",
		Long: `Run one scheduler pass for a single minute.

With --dry-run, valve commands are printed instead of published and
execution logs are still written.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			now := time.Now()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			opts := scheduler.Options{Location: cfg.Scheduler.Location, MoistureField: cfg.Scheduler.MoistureField}
			if tz != "" {
				if opts.Location, err = time.LoadLocation(tz); err != nil {
					return fmt.Errorf("--tz: %w", err)
				}
			}
			if field != "" {
				opts.MoistureField = field
			}

			store, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close()

			var sender scheduler.CommandSender = printSender{w: cmd.OutOrStdout()}
			if !dryRun {
				mc, err := mqttclient.New(mqttclient.Options{BrokerURL: cfg.MQTT.BrokerURL, ClientID: cfg.MQTT.ClientID})
				if err != nil {
					return err
				}
				defer mc.Close()
				sender = command.NewService(mc, cfg.MQTT.ControlTopic)
			}

			s := scheduler.New(store, service.NewReadingService(store), sender, opts)
			sum, runErr := s.RunAt(cmd.Context(), now)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(sum); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "evaluate at this RFC3339 time instead of now")
	cmd.Flags().StringVar(&tz, "tz", "", "schedule time zone (default SCHEDULER_TZ)")
	cmd.Flags().StringVar(&field, "field", "", "reading value compared with the threshold (default MOISTURE_FIELD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print valve commands instead of publishing them")
	return cmd
}

type printSender struct{ w io.Writer }

func (p printSender) Send(_ context.Context, cmd command.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.w, "would publish %s\n", b)
	return err
}
