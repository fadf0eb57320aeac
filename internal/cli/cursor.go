package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/smartfarm/irrigation/internal/cursor"
)

// NewCursorCommand groups the token helpers.
func NewCursorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect and build continuation tokens",
	}
	cmd.AddCommand(newCursorDecodeCommand(), newCursorEncodeCommand())
	return cmd
}

func newCursorDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "decode <token>",
		Short:        "Print the position a token refers to as canonical JSON",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := cursor.NewCodec(cursor.DefaultKeySchema).Decode(args[0])
			if err != nil {
				return err
			}
			text, err := cursor.MarshalCanonical(m)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(text))
			return nil
		},
	}
}

func newCursorEncodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "encode <thingId> <timestamp>",
		Short:        "Build a token that resumes after the given reading",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("timestamp %q: %w", args[1], err)
			}
			token, err := cursor.NewCodec(cursor.DefaultKeySchema).Encode(cursor.DefaultKeySchema.Position(args[0], ts))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
