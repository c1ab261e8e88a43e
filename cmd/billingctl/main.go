package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "billingctl",
	Short:   "Operator tool for the billing sync service",
	Long:    `Inspect the billing activity trail: follow live activity from redis or list stored records.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(newTailCmd())
	rootCmd.AddCommand(newActivitiesCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
