package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulnscan/scanengine/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewBoltStore(path, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestQueue_EnqueueAssignsMonotonicPositions(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "b"}))
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "c"}))

	entries, err := store.Iterate()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{entries[0].ReportID, entries[1].ReportID, entries[2].ReportID})
}

func TestQueue_DuplicateEnqueueRejected(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))
	assert.Error(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))
}

func TestQueue_MoveToEndReorders(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "b"}))

	require.NoError(t, store.MoveToEnd("a"))

	entries, err := store.Iterate()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ReportID)
	assert.Equal(t, "a", entries[1].ReportID)
}

func TestQueue_SetHandlerPIDPersists(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))
	require.NoError(t, store.SetHandlerPID("a", 4242))

	entries, err := store.Iterate()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4242, entries[0].HandlerPID)
}

func TestQueue_RemoveAndLength(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "a"}))
	require.NoError(t, store.Enqueue(&types.ScanRequest{ReportID: "b"}))

	n, err := store.Length()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.Remove("a"))

	n, err = store.Length()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTask_CreateGetUpdateDelete(t *testing.T) {
	store := newTestStore(t)
	task := &types.Task{ID: "t1", Scanner: types.ScannerOpenVAS, Status: types.TaskRequested}

	require.NoError(t, store.CreateTask(task))

	got, err := store.GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskRequested, got.Status)

	task.Status = types.TaskRunning
	require.NoError(t, store.UpdateTask(task))

	got, err = store.GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskRunning, got.Status)

	require.NoError(t, store.DeleteTask("t1"))
	_, err = store.GetTask("t1")
	assert.Error(t, err)
}

func TestReport_CreateGetUpdateDelete(t *testing.T) {
	store := newTestStore(t)
	report := &types.Report{ID: "r1", Status: types.TaskQueued, Progress: 0}

	require.NoError(t, store.CreateReport(report))

	report.Progress = 50
	report.Status = types.TaskRunning
	require.NoError(t, store.UpdateReport(report))

	got, err := store.GetReport("r1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)
	assert.Equal(t, types.TaskRunning, got.Status)

	require.NoError(t, store.DeleteReport("r1"))
	_, err = store.GetReport("r1")
	assert.Error(t, err)
}

func TestReport_List(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateReport(&types.Report{ID: "r1", Status: types.TaskQueued}))
	require.NoError(t, store.CreateReport(&types.Report{ID: "r2", Status: types.TaskRunning}))

	list, err := store.ListReports()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAsset_CreateListDelete(t *testing.T) {
	store := newTestStore(t)
	candidate := &types.AssetCandidate{Key: "host-1", IP: "1.2.3.4", LastSeen: time.Unix(100, 0)}

	require.NoError(t, store.CreateAsset(candidate.Key, candidate))

	got, err := store.GetAsset("host-1")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", got.IP)

	list, err := store.ListAssets()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeleteAsset("host-1"))
	_, err = store.GetAsset("host-1")
	assert.Error(t, err)
}

func TestSecret_SaveGetListDelete(t *testing.T) {
	store := newTestStore(t)
	secret := &types.Secret{ID: "sec-1", Name: "target-ssh", Data: []byte("ciphertext")}

	require.NoError(t, store.SaveSecret(secret))

	got, err := store.GetSecret("sec-1")
	require.NoError(t, err)
	assert.Equal(t, secret.Data, got.Data)
	assert.Equal(t, "target-ssh", got.Name)

	list, err := store.ListSecrets()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeleteSecret("sec-1"))
	_, err = store.GetSecret("sec-1")
	assert.Error(t, err)
}

func TestCA_SaveGetRoundtrip(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetCA()
	assert.Error(t, err)

	data := []byte(`{"RootCertDER":"...","RootKeyDER":"..."}`)
	require.NoError(t, store.SaveCA(data))

	got, err := store.GetCA()
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCA_SaveOverwritesPreviousValue(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveCA([]byte("first")))
	require.NoError(t, store.SaveCA([]byte("second")))

	got, err := store.GetCA()
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}
