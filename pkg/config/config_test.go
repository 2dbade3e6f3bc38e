package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
use_scan_queue: false
max_active_scan_handlers: 4
max_concurrent_scan_updates: 2
scanner_connection_retry: 5
table_order_if_sort_not_specified: true
store_path: /var/lib/scanengine/data.db
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.UseScanQueue)
	assert.Equal(t, 4, cfg.MaxActiveScanHandlers)
	assert.Equal(t, 2, cfg.MaxConcurrentScanUpdates)
	assert.Equal(t, 5, cfg.ScannerConnectionRetry)
	assert.True(t, cfg.TableOrderIfSortNotSpecified)
	assert.Equal(t, "/var/lib/scanengine/data.db", cfg.StorePath)
	// Unspecified fields keep the default.
	assert.Equal(t, 30*time.Second, cfg.ScanHandlerActiveTime)
}
