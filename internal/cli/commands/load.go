package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/yesterday-dev/yesterday/internal/cli/client"
)

// pollInterval is how often load --wait asks for progress
var pollInterval = 2 * time.Second

// NewLoadCmd creates the load command
func NewLoadCmd(opts *Options) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "load <date>",
		Short: "Restore a backup (YYYYMMDD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts.api(), opts.Out, args[0], wait)
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Follow progress until the restoration finishes")

	return cmd
}

func runLoad(api API, out io.Writer, backupID string, wait bool) error {
	resp, err := api.LoadBackup(backupID)
	if err != nil {
		var apiErr *client.APIError
		if client.IsConflict(err) && errors.As(err, &apiErr) {
			if apiErr.Progress != nil {
				return fmt.Errorf("%s (%s, %d%%)", apiErr.Message, apiErr.Status, *apiErr.Progress)
			}
			return errors.New(apiErr.Message)
		}
		return fmt.Errorf("failed to load backup: %w", err)
	}

	fmt.Fprintln(out, resp.Message)
	if !wait {
		fmt.Fprintf(out, "Follow it with: yesterday progress %s\n", backupID)
		return nil
	}

	return followProgress(api, out, backupID, pollInterval)
}

// followProgress prints every change of the job until it is finished
func followProgress(api API, out io.Writer, backupID string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last client.Job
	for {
		job, err := api.Progress(backupID)
		if err != nil {
			return fmt.Errorf("failed to read progress: %w", err)
		}

		if job.Status != last.Status || job.Progress != last.Progress || job.Message != last.Message {
			printJobLine(out, job)
			last = *job
		}

		if job.Finished() {
			if job.Status == "failed" {
				return fmt.Errorf("restoration of %s failed: %s", backupID, jobError(job))
			}
			return nil
		}

		<-ticker.C
	}
}

func printJobLine(out io.Writer, job *client.Job) {
	fmt.Fprintf(out, "[%3d%%] %-17s %s\n", job.Progress, job.Status, job.Message)
}

func jobError(job *client.Job) string {
	if job.Error == nil {
		return job.Message
	}
	return *job.Error
}
