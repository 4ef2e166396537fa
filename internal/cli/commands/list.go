package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCmd creates the ls command
func NewListCmd(opts *Options) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List backups in the bucket",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts.api(), opts.Out, refresh)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-read the bucket instead of the server's cached inventory")

	return cmd
}

func runList(api API, out io.Writer, refresh bool) error {
	backups, err := api.ListBackups(refresh)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		fmt.Fprintln(out, "No backups found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSIZE\tUPLOADED\tLOADED")
	fmt.Fprintln(w, "────\t────\t────────\t──────")

	for _, backup := range backups {
		loaded := ""
		if backup.Loaded {
			loaded = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			backup.Date,
			backup.SizeHuman,
			backup.Timestamp,
			loaded,
		)
	}

	return w.Flush()
}
