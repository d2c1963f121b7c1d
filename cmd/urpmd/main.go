// Command urpmd is the distributed RPM package cache daemon: it tracks
// configured media, probes upstream mirrors for freshness, pre-downloads
// pending updates while the host is idle, and answers a small JSON control
// surface that peers and local tooling both use.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/urpmd/urpmd/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "urpmd",
	Short: "urpmd - distributed RPM package cache daemon",
	Long: `urpmd keeps a local cache of RPM media fresh across a fleet of
hosts: it probes upstream mirrors, pre-downloads pending updates during
idle windows, and lets peers borrow already-cached packages instead of
each going back to the mirror.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "urpmd: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mediaCmd)
	rootCmd.AddCommand(refreshCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOut,
	})
}
