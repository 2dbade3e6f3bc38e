// Package config holds the process-wide options for the scan dispatch
// subsystem. A Config is loaded once at startup and passed by reference
// to every collaborator that needs it; nothing here is package-scoped
// mutable state.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the recognized set of process-wide options (§6).
type Config struct {
	// UseScanQueue enables queue-driven dispatch. When false the supervisor
	// never starts new handlers.
	UseScanQueue bool `yaml:"use_scan_queue"`

	// ScanHandlerActiveTime is the yield budget a handler honors before
	// re-queuing itself, a time.Duration given in YAML as a duration string
	// such as "30s".
	ScanHandlerActiveTime time.Duration `yaml:"scan_handler_active_time"`

	// MaxActiveScanHandlers caps concurrently running handler processes.
	// Zero means unbounded.
	MaxActiveScanHandlers int `yaml:"max_active_scan_handlers"`

	// MaxConcurrentScanUpdates is the semaphore gate's capacity. Zero
	// disables the gate entirely.
	MaxConcurrentScanUpdates int `yaml:"max_concurrent_scan_updates"`

	// ScannerConnectionRetry is the per-scan ceiling on transient-error
	// retries against the scanner client.
	ScannerConnectionRetry int `yaml:"scanner_connection_retry"`

	// TableOrderIfSortNotSpecified suppresses the filter parser's
	// synthesized "sort=name" default.
	TableOrderIfSortNotSpecified bool `yaml:"table_order_if_sort_not_specified"`

	// StorePath is the BoltDB file backing the persistence store.
	StorePath string `yaml:"store_path"`

	// ListenAddr is the metrics/health HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// StoreID seeds the store encryption key (security.DeriveKeyFromStoreID).
	// Kept outside the BoltDB file itself, per pkg/security's threat model.
	StoreID string `yaml:"store_id"`

	// Scanner is the default connection endpoint a handler dials. The wire
	// protocol itself is out of scope (§1 Non-goals); this is only enough
	// to construct a types.ConnectionData.
	Scanner ScannerEndpoint `yaml:"scanner"`
}

// ScannerEndpoint describes how a handler reaches the external scanner.
type ScannerEndpoint struct {
	// Host is either a hostname/IP for a TCP dial or a unix-socket path
	// (leading '/') for a local dial, per types.ConnectionData.IsUnixSocket.
	Host string `yaml:"host"`
	// Port is ignored for a unix-socket Host.
	Port int `yaml:"port"`
	// UseRelayMapper routes the dial through scanner.RelayMapper instead of
	// dialing Host/Port directly.
	UseRelayMapper bool `yaml:"use_relay_mapper"`
}

// Default returns the zero-risk baseline: queueing on, no handler cap, a
// disabled semaphore gate, and a generous retry budget.
func Default() Config {
	return Config{
		UseScanQueue:             true,
		ScanHandlerActiveTime:    30 * time.Second,
		MaxActiveScanHandlers:    0,
		MaxConcurrentScanUpdates: 0,
		ScannerConnectionRetry:   3,
		StorePath:                "scanengine.db",
		ListenAddr:               ":9115",
		StoreID:                  "scanengine",
		Scanner:                  ScannerEndpoint{Host: "/var/run/scanengine/scanner.sock"},
	}
}

// Load reads a YAML document at path over the defaults, returning the
// result. A missing file is not an error: the defaults are returned as-is,
// matching the CLI's "config file is optional" flag semantics.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
