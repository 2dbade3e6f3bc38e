package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscan/scanengine/pkg/config"
	"github.com/vulnscan/scanengine/pkg/storage"
	"github.com/vulnscan/scanengine/pkg/types"
)

type fakeForker struct {
	nextPID int32
	fail    map[string]bool
}

func (f *fakeForker) Fork(req *types.ScanRequest) (int, error) {
	if f.fail[req.ReportID] {
		return 0, fmt.Errorf("forced failure")
	}
	return int(atomic.AddInt32(&f.nextPID, 1)), nil
}

func newTestStore(t *testing.T) *storage.BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sup.db")
	store, err := storage.NewBoltStore(path, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTick_QueueDisabledIsNoop(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))

	cfg := config.Default()
	cfg.UseScanQueue = false
	sup := New(store, &cfg, &fakeForker{})

	active, err := sup.Tick()
	require.NoError(t, err)
	assert.Equal(t, 0, active)

	entries, err := store.Iterate()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].HandlerPID)
}

func TestTick_ForksNewEntries(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "b"}))

	cfg := config.Default()
	sup := New(store, &cfg, &fakeForker{})

	active, err := sup.Tick()
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	entries, err := store.Iterate()
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotZero(t, e.HandlerPID)
	}
}

func TestTick_RespectsMaxActive(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: id}))
	}

	cfg := config.Default()
	cfg.MaxActiveScanHandlers = 2
	sup := New(store, &cfg, &fakeForker{})

	active, err := sup.Tick()
	require.NoError(t, err)
	assert.Equal(t, 2, active)
}

func TestTick_DeadHandlerIsMovedToEnd(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "b"}))
	// A pid that is certainly not alive.
	require.NoError(t, store.SetHandlerPID("a", 999999))

	cfg := config.Default()
	sup := New(store, &cfg, &fakeForker{})

	active, err := sup.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, active) // only "b" got freshly forked and counted

	entries, err := store.Iterate()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ReportID)
	assert.Equal(t, "a", entries[1].ReportID)
}

func TestTick_LiveHandlerCountsActiveWithoutRefork(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))
	require.NoError(t, store.SetHandlerPID("a", os.Getpid()))

	cfg := config.Default()
	sup := New(store, &cfg, &fakeForker{})

	active, err := sup.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	entries, err := store.Iterate()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), entries[0].HandlerPID)
}

func TestTick_FailedForkMovesToEnd(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "b"}))

	cfg := config.Default()
	sup := New(store, &cfg, &fakeForker{fail: map[string]bool{"a": true}})

	active, err := sup.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	entries, err := store.Iterate()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ReportID)
	assert.Equal(t, "a", entries[1].ReportID)
	assert.NotZero(t, entries[0].HandlerPID)
	assert.Equal(t, 0, entries[1].HandlerPID)
}
