// Package cli implements irrigctl, the operator tool for the SQLite store.
package cli

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartfarm/irrigation/internal/repo/sqliterepo"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath  string
	Verbose bool
}

// NewRootCommand creates the root command for irrigctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "irrigctl",
		Short: "Operate the irrigation store and scheduler",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.Verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}

	dbDefault := os.Getenv("SQLITE_PATH")
	if dbDefault == "" {
		dbDefault = "irrigation.db"
	}
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", dbDefault, "SQLite database path")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewReadingsCommand(opts))
	cmd.AddCommand(NewCursorCommand())
	cmd.AddCommand(NewTickCommand(opts))

	return cmd
}

func openStore(opts *RootOptions) (*sqliterepo.Store, error) {
	return sqliterepo.Open(opts.DBPath)
}
