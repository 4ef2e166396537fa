package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yesterday-dev/yesterday/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree around the given options
func NewRootCmd(opts *commands.Options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "yesterday",
		Short: "Yesterday - restore nightly database backups",
		Long: `Yesterday CLI - browse the backup bucket and restore a day's database
into its own set of containers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.Server, "server", opts.Server, "API address (env YESTERDAY_SERVER)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(opts.Out, "yesterday version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewListCmd(opts))
	rootCmd.AddCommand(commands.NewLoadCmd(opts))
	rootCmd.AddCommand(commands.NewProgressCmd(opts))
	rootCmd.AddCommand(commands.NewUnloadCmd(opts))
	rootCmd.AddCommand(commands.NewLoadedCmd(opts))
	rootCmd.AddCommand(commands.NewRestorationsCmd(opts))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd(commands.NewOptions()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
