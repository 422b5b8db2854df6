package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "questionnaire",
		Short: "Business-idea questionnaire service",
		Long: `Serves the branching business-idea questionnaire over HTTP and checks
question graph definitions offline.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(graphCmd())
	return rootCmd
}

// Execute runs the root command
func Execute(version string) error {
	if err := newRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
