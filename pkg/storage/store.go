package storage

import (
	"github.com/vulnscan/scanengine/pkg/types"
)

// QueueStore is the durable FIFO of scan requests S and H share (§4.3).
// Every report appears at most once; enqueue order is total and monotonic;
// a mutation made by one caller is visible to the next Iterate call.
type QueueStore interface {
	// Enqueue inserts a request at the end of the queue.
	Enqueue(req *types.ScanRequest) error
	// Iterate yields every entry in queue order.
	Iterate() ([]*types.ScanRequest, error)
	// MoveToEnd re-queues an entry, giving it a fresh enqueue position.
	MoveToEnd(reportID string) error
	// SetHandlerPID records the process id of the handler assigned to an entry.
	SetHandlerPID(reportID string, pid int) error
	// Remove deletes an entry.
	Remove(reportID string) error
	// Length reports the current queue size.
	Length() (int, error)
}

// Store defines the persistence surface for the scan dispatch subsystem:
// the queue, and CRUD for the durable records a handler reads and writes.
type Store interface {
	QueueStore

	// Tasks
	CreateTask(task *types.Task) error
	GetTask(id string) (*types.Task, error)
	UpdateTask(task *types.Task) error
	DeleteTask(id string) error

	// Reports
	CreateReport(report *types.Report) error
	GetReport(id string) (*types.Report, error)
	UpdateReport(report *types.Report) error
	DeleteReport(id string) error
	ListReports() ([]*types.Report, error)

	// Assets
	CreateAsset(key string, candidate *types.AssetCandidate) error
	GetAsset(key string) (*types.AssetCandidate, error)
	ListAssets() ([]*types.AssetCandidate, error)
	DeleteAsset(key string) error

	// CA persists the scanner-client certificate authority's root
	// key material (pkg/security.CertAuthority).
	SaveCA(data []byte) error
	GetCA() ([]byte, error)

	// Secrets persists encrypted credential blobs (pkg/types.Secret) that a
	// Credentials field's SSH/SMB/ESXi/SNMP/Krb5 id references. The engine
	// stores and serves these ciphertext-only; resolving a reference into
	// actual LSC credential material for the scanner is out of scope.
	SaveSecret(secret *types.Secret) error
	GetSecret(id string) (*types.Secret, error)
	DeleteSecret(id string) error
	ListSecrets() ([]*types.Secret, error)

	// Utility
	Close() error
}
