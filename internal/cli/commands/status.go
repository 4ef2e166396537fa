package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewLoadedCmd creates the loaded command
func NewLoadedCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "loaded",
		Short: "List backups whose containers are running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoaded(opts.api(), opts.Out)
		},
	}
}

func runLoaded(api API, out io.Writer) error {
	loaded, err := api.LoadedBackups()
	if err != nil {
		return fmt.Errorf("failed to list loaded backups: %w", err)
	}

	if len(loaded) == 0 {
		fmt.Fprintln(out, "No backups loaded.")
		return nil
	}
	for _, id := range loaded {
		fmt.Fprintln(out, id)
	}
	return nil
}

// NewRestorationsCmd creates the restorations command
func NewRestorationsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "restorations",
		Short: "List restorations started since the server came up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestorations(opts.api(), opts.Out)
		},
	}
}

func runRestorations(api API, out io.Writer) error {
	jobs, err := api.Restorations()
	if err != nil {
		return fmt.Errorf("failed to list restorations: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No restorations yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKUP\tSTATUS\tPROGRESS\tSTARTED\tMESSAGE")
	fmt.Fprintln(w, "──────\t──────\t────────\t───────\t───────")

	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\n",
			job.BackupID,
			job.Status,
			job.Progress,
			humanize.Time(job.StartedAt),
			job.Message,
		)
	}

	return w.Flush()
}
