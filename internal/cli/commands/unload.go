package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewUnloadCmd creates the unload command
func NewUnloadCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "unload <date>",
		Short: "Stop the containers of a restored backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnload(opts.api(), opts.Out, args[0])
		},
	}
}

func runUnload(api API, out io.Writer, backupID string) error {
	if err := api.UnloadBackup(backupID); err != nil {
		return fmt.Errorf("failed to unload backup: %w", err)
	}
	fmt.Fprintf(out, "Unloaded backup %s\n", backupID)
	return nil
}
