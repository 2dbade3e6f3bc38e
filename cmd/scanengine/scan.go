package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnscan/scanengine/pkg/config"
	"github.com/vulnscan/scanengine/pkg/filter"
	"github.com/vulnscan/scanengine/pkg/storage"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Inspect scan reports",
}

var scanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scan reports, optionally narrowed by a filter string",
	Long: `list parses --filter the same way the query layer would (§4.1:
time-relative values, severity keywords, integer clamping, synthesized
defaults) and prints the resulting keyword sequence alongside every report
in the store. Applying the parsed keywords to report data is a query-layer
responsibility outside this package.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		filterStr, _ := cmd.Flags().GetString("filter")
		if filterStr != "" {
			keywords, err := filter.Parse(filterStr, filter.Options{
				TableOrderIfSortNotSpecified: cfg.TableOrderIfSortNotSpecified,
			})
			if err != nil {
				return fmt.Errorf("parse filter: %w", err)
			}
			fmt.Println("Parsed filter:")
			for _, kw := range keywords {
				fmt.Printf("  %s\n", filter.String(kw))
			}
			fmt.Println()
		}

		store, err := storage.NewBoltStore(cfg.StorePath, 5*time.Second)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		reports, err := store.ListReports()
		if err != nil {
			return fmt.Errorf("list reports: %w", err)
		}

		if len(reports) == 0 {
			fmt.Println("No reports.")
			return nil
		}

		fmt.Printf("%-36s  %-16s  %8s  %s\n", "REPORT ID", "STATUS", "PROGRESS", "UPDATED")
		for _, r := range reports {
			fmt.Printf("%-36s  %-16s  %7d%%  %s\n", r.ID, r.Status, r.Progress, r.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	scanListCmd.Flags().String("filter", "", "Filter string, e.g. \"severity>5.0 sort=name\"")
	scanCmd.AddCommand(scanListCmd)
}
