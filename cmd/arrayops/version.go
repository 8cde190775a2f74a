package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/arrayops/internal/unity"
)

var versionArray bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("arrayops %s (commit: %s)\n", version, commit)
		if !versionArray {
			return nil
		}
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			fmt.Printf("array software %s\n", sys.Version())
			return nil
		})
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionArray, "array", false, "also print the connected array's software version")
}
