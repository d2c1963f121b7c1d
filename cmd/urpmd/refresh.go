package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// refreshCmd is the SIGHUP-equivalent over HTTP: it forces the running
// daemon to re-sync its enabled media immediately, without signaling the
// daemon's process directly.
func init() {
	addTargetFlags(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force an immediate sync of all enabled media",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Synced int      `json:"synced"`
			Errors []string `json:"errors,omitempty"`
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()
		if err := postJSON(ctx, queryBaseURL(cmd)+"/refresh", nil, &resp); err != nil {
			return err
		}

		fmt.Printf("synced %d media\n", resp.Synced)
		for _, e := range resp.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		if len(resp.Errors) > 0 {
			return fmt.Errorf("%d media failed to sync", len(resp.Errors))
		}
		return nil
	},
}
