// Package semaphore implements the Semaphore Gate (G): a named counting
// semaphore shared by every handler process, backed by a dedicated BoltDB
// bucket rather than an in-process primitive. The database file is the
// shared memory — acquire and release are bbolt read-write transactions
// against a single counter key, and waiting is done by polling at a fixed
// interval since bbolt has no native condition variable across processes.
package semaphore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSemaphore = []byte("semaphore")

// AcquireResult mirrors the three-way outcome §4.7 specifies for acquire.
type AcquireResult int

const (
	Acquired AcquireResult = iota
	TimedOut
	AcquireError
)

const pollInterval = 100 * time.Millisecond

// Gate is a cross-process counting semaphore with a fixed capacity. A
// capacity of 0 disables gating: Acquire always succeeds immediately.
type Gate struct {
	db       *bolt.DB
	name     string
	capacity int
}

// Open binds a Gate of the given capacity to a key in db. Each distinct
// name supports an independent counter in the same database file.
func Open(db *bolt.DB, name string, capacity int) (*Gate, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketSemaphore)
		if err != nil {
			return err
		}
		if b.Get([]byte(name)) == nil {
			return b.Put([]byte(name), encodeCount(0))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("semaphore: open %s: %w", name, err)
	}
	return &Gate{db: db, name: name, capacity: capacity}, nil
}

// Acquire blocks, polling at pollInterval, until a unit is available, the
// wait elapses, or a storage error occurs. A timeout must not be treated
// as a failed attempt by the caller's retry budget (§4.7).
func (g *Gate) Acquire(wait time.Duration) AcquireResult {
	if g.capacity <= 0 {
		return Acquired
	}

	deadline := time.Now().Add(wait)
	for {
		acquired, err := g.tryAcquire()
		if err != nil {
			return AcquireError
		}
		if acquired {
			return Acquired
		}
		if time.Now().After(deadline) {
			return TimedOut
		}
		time.Sleep(pollInterval)
	}
}

func (g *Gate) tryAcquire() (bool, error) {
	acquired := false
	err := g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSemaphore)
		count := decodeCount(b.Get([]byte(g.name)))
		if count >= g.capacity {
			return nil
		}
		acquired = true
		return b.Put([]byte(g.name), encodeCount(count+1))
	})
	return acquired, err
}

// Release gives back a unit acquired with Acquire. Releasing beyond zero
// is a storage-level error, since it would indicate a bookkeeping bug in
// the caller rather than a recoverable condition.
func (g *Gate) Release() error {
	if g.capacity <= 0 {
		return nil
	}
	return g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSemaphore)
		count := decodeCount(b.Get([]byte(g.name)))
		if count <= 0 {
			return errors.New("semaphore: release of unacquired unit")
		}
		return b.Put([]byte(g.name), encodeCount(count-1))
	})
}

func encodeCount(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeCount(data []byte) int {
	if len(data) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(data))
}
