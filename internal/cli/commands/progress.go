package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yesterday-dev/yesterday/internal/cli/client"
)

// NewProgressCmd creates the progress command
func NewProgressCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <date>",
		Short: "Show the restoration progress of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(opts.api(), opts.Out, args[0])
		},
	}
}

func runProgress(api API, out io.Writer, backupID string) error {
	job, err := api.Progress(backupID)
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("no restoration has been started for %s", backupID)
		}
		return fmt.Errorf("failed to read progress: %w", err)
	}

	fmt.Fprintf(out, "Backup:   %s\n", job.BackupID)
	fmt.Fprintf(out, "Status:   %s (%d%%)\n", job.Status, job.Progress)
	fmt.Fprintf(out, "Message:  %s\n", job.Message)
	fmt.Fprintf(out, "Started:  %s\n", humanize.Time(job.StartedAt))
	if job.CompletedAt != nil {
		fmt.Fprintf(out, "Finished: %s (took %s)\n",
			humanize.Time(*job.CompletedAt),
			job.CompletedAt.Sub(job.StartedAt).Round(time.Second),
		)
	}
	if job.Error != nil {
		fmt.Fprintf(out, "Error:    %s\n", *job.Error)
	}
	return nil
}
