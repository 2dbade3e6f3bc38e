// Command scanengine is the scan dispatch subsystem's single binary: it
// serves the queue supervisor loop, exposes read-only inspection
// subcommands, and doubles as its own handler process via two hidden
// subcommands the supervisor re-execs into (pkg/supervisor.ExecForker).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vulnscan/scanengine/pkg/log"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scanengine",
	Short: "Scan dispatch subsystem: queue supervisor, handler and CLI",
	Long: `scanengine drives a queue of vulnerability scan requests through to
completion: a supervisor forks one handler process per active scan, each
handler driving an external scanner through its start/poll lifecycle.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("scanengine version %s\ncommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (optional)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(secretCmd)
	rootCmd.AddCommand(handlerBootstrapCmd)
	rootCmd.AddCommand(handlerRunCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
