package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/service"
)

type pageJSON struct {
	Items      []pageItemJSON `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

type pageItemJSON struct {
	ThingID   string            `json:"thingId"`
	Timestamp int64             `json:"timestamp"`
	Values    map[string]string `json:"values"`
}

// NewReadingsCommand creates the readings command.
func NewReadingsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		limit int
		token string
	)

	cmd := &cobra.Command{
		Use:          "readings <thingId>",
		Short:        "Print one page of a device's readings as JSON, newest first",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close()

			page, err := service.NewReadingService(store).ListReadingsPage(cmd.Context(), service.PageRequest{
				PartitionKey: args[0],
				Limit:        limit,
				Cursor:       token,
			})
			if err != nil {
				return err
			}

			out := pageJSON{Items: make([]pageItemJSON, 0, len(page.Items)), NextCursor: page.NextCursor}
			for _, r := range page.Items {
				values := make(map[string]string, len(r.Values))
				for k, v := range r.Values {
					values[k] = cursor.NumberLiteral(v)
				}
				out.Items = append(out.Items, pageItemJSON{ThingID: r.ThingID, Timestamp: r.Timestamp, Values: values})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default 50, max 500)")
	cmd.Flags().StringVar(&token, "cursor", "", "continuation token from a previous page")
	return cmd
}
