package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vulnscan/scanengine/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config (defaults overlaid with --config, if given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
