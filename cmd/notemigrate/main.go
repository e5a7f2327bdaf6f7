package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"notemigrate/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "notemigrate",
	Short: "Migrate a hierarchical note export into a flat note service",
	Long: `notemigrate uploads a note collection export into an ID-addressed
note service over its data API.

Folder hierarchy is reconstructed from document locations, resources are
uploaded and deduplicated by filename, and in-body references are rewritten
to point at the uploaded resources. Everything created in the target is
recorded in a local sync cache, so an interrupted migration is resumed
simply by running the same command again.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return config.Initialize(rootCmd.PersistentFlags())
	}

	rootCmd.PersistentFlags().String("work-dir", "", "directory for the sync cache and logs (default ~/.notemigrate)")
	rootCmd.PersistentFlags().String("token", "", "data API token (overrides target.token)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
