package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global flags
var (
	profilePath  string
	outputFormat string
	noHeaders    bool
	logLevel     string
	metricsFile  string
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	warnText = color.New(color.FgYellow).SprintFunc()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s Error: %v\n", failMark, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "arrayops",
	Short: "arrayops - storage array management tool",
	Long: `arrayops manages LUNs, consistency groups, hosts, snapshots and
replication on Unity arrays, and MirrorView mirrors on VNX arrays.

Connection details come from a YAML profile (--profile, or the
ARRAYOPS_PROFILE environment variable). The password can be supplied
through ARRAYOPS_PASSWORD instead of the profile.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profilePath, "profile", "p", defaultProfilePath(), "connection profile")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the profile log level")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write request metrics in Prometheus text format to this file on exit")

	rootCmd.AddCommand(lunCmd)
	rootCmd.AddCommand(cgCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(snapCmd)
	rootCmd.AddCommand(replicationCmd)
	rootCmd.AddCommand(mirrorCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(versionCmd)
}
