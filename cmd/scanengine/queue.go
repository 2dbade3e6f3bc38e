package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnscan/scanengine/pkg/config"
	"github.com/vulnscan/scanengine/pkg/storage"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the scan queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List the scan queue in enqueue order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := storage.NewBoltStore(cfg.StorePath, 5*time.Second)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		entries, err := store.Iterate()
		if err != nil {
			return fmt.Errorf("iterate queue: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}

		fmt.Printf("%-8s  %-36s  %8s  %10s  %s\n", "POS", "REPORT ID", "TASK KEY", "START FROM", "HANDLER PID")
		for _, e := range entries {
			fmt.Printf("%-8d  %-36s  %8d  %10d  %d\n", e.Position, e.ReportID, e.TaskKey, e.StartFrom, e.HandlerPID)
		}
		fmt.Printf("\n%d entries\n", len(entries))
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueStatusCmd)
}
