package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	addTargetFlags(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running daemon's status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Running     bool       `json:"running"`
			StartTime   time.Time  `json:"start_time"`
			UptimeSecs  float64    `json:"uptime_seconds"`
			LastRefresh *time.Time `json:"last_refresh"`
			DBPath      string     `json:"db_path"`
			BaseDir     string     `json:"base_dir"`
			Host        string     `json:"host"`
			Port        int        `json:"port"`
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := getJSON(ctx, queryBaseURL(cmd)+"/status", &resp); err != nil {
			return err
		}

		fmt.Printf("urpmd: running\n")
		fmt.Printf("  listening:    %s:%d\n", resp.Host, resp.Port)
		fmt.Printf("  uptime:       %s\n", time.Duration(resp.UptimeSecs*float64(time.Second)).Truncate(time.Second))
		fmt.Printf("  base dir:     %s\n", resp.BaseDir)
		fmt.Printf("  db path:      %s\n", resp.DBPath)
		if resp.LastRefresh != nil {
			fmt.Printf("  last refresh: %s\n", resp.LastRefresh.Format(time.RFC3339))
		} else {
			fmt.Printf("  last refresh: never\n")
		}
		return nil
	},
}
