package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Inspect configured media",
}

var mediaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured media and their sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		var medias []struct {
			Name         string
			URL          string
			Enabled      bool
			UpdateMedia  bool
			LastSync     *time.Time
			PackageCount int
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := getJSON(ctx, queryBaseURL(cmd)+"/media", &medias); err != nil {
			return err
		}
		if len(medias) == 0 {
			fmt.Println("no media configured")
			return nil
		}

		fmt.Printf("%-20s %-8s %-10s %-10s %s\n", "NAME", "ENABLED", "PACKAGES", "LAST SYNC", "URL")
		for _, m := range medias {
			lastSync := "never"
			if m.LastSync != nil {
				lastSync = m.LastSync.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-20s %-8t %-10d %-10s %s\n", m.Name, m.Enabled, m.PackageCount, lastSync, m.URL)
		}
		return nil
	},
}

func init() {
	mediaCmd.AddCommand(mediaListCmd)
	addTargetFlags(mediaListCmd)
}
