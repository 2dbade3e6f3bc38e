package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/vulnscan/scanengine/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketScanQueue = []byte("scan_queue")
	bucketTasks     = []byte("tasks")
	bucketReports   = []byte("reports")
	bucketAssets    = []byte("assets")
	bucketCA        = []byte("ca")
	bucketSecrets   = []byte("secrets")
)

var caKey = []byte("root")

// BoltStore implements Store on top of a single BoltDB file. Cross-process
// write serialization (§5) comes from BoltDB's own file lock, configured
// through Options.Timeout below: the supervisor process and every handler
// process it forks open the same file and contend for the same lock.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the BoltDB file at path, blocking
// up to lockTimeout for the file lock held by another process.
func NewBoltStore(path string, lockTimeout time.Duration) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketScanQueue, bucketTasks, bucketReports, bucketAssets, bucketCA, bucketSecrets} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying bbolt handle so collaborators that need their
// own bucket in the same file — the semaphore gate — can share the one
// open file instead of opening a second lock on it.
func (s *BoltStore) DB() *bolt.DB {
	return s.db
}

func (s *BoltStore) Enqueue(req *types.ScanRequest) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketScanQueue)
		if b.Get([]byte(req.ReportID)) != nil {
			return fmt.Errorf("storage: report %s already queued", req.ReportID)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		req.Position = int64(seq)
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		return b.Put([]byte(req.ReportID), data)
	})
}

func (s *BoltStore) Iterate() ([]*types.ScanRequest, error) {
	var entries []*types.ScanRequest
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketScanQueue)
		return b.ForEach(func(k, v []byte) error {
			var req types.ScanRequest
			if err := json.Unmarshal(v, &req); err != nil {
				return err
			}
			entries = append(entries, &req)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return entries, nil
}

func (s *BoltStore) MoveToEnd(reportID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketScanQueue)
		data := b.Get([]byte(reportID))
		if data == nil {
			return fmt.Errorf("storage: report %s not queued", reportID)
		}
		var req types.ScanRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		req.Position = int64(seq)
		out, err := json.Marshal(req)
		if err != nil {
			return err
		}
		return b.Put([]byte(reportID), out)
	})
}

func (s *BoltStore) SetHandlerPID(reportID string, pid int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketScanQueue)
		data := b.Get([]byte(reportID))
		if data == nil {
			return fmt.Errorf("storage: report %s not queued", reportID)
		}
		var req types.ScanRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}
		req.HandlerPID = pid
		out, err := json.Marshal(req)
		if err != nil {
			return err
		}
		return b.Put([]byte(reportID), out)
	})
}

func (s *BoltStore) Remove(reportID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScanQueue).Delete([]byte(reportID))
	})
}

func (s *BoltStore) Length() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketScanQueue).Stats().KeyN
		return nil
	})
	return n, err
}

// Tasks

func (s *BoltStore) CreateTask(task *types.Task) error {
	return s.putJSON(bucketTasks, task.ID, task)
}

func (s *BoltStore) GetTask(id string) (*types.Task, error) {
	var task types.Task
	if err := s.getJSON(bucketTasks, id, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *BoltStore) UpdateTask(task *types.Task) error {
	return s.putJSON(bucketTasks, task.ID, task)
}

func (s *BoltStore) DeleteTask(id string) error {
	return s.delete(bucketTasks, id)
}

// Reports

func (s *BoltStore) CreateReport(report *types.Report) error {
	return s.putJSON(bucketReports, report.ID, report)
}

func (s *BoltStore) GetReport(id string) (*types.Report, error) {
	var report types.Report
	if err := s.getJSON(bucketReports, id, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *BoltStore) UpdateReport(report *types.Report) error {
	return s.putJSON(bucketReports, report.ID, report)
}

func (s *BoltStore) DeleteReport(id string) error {
	return s.delete(bucketReports, id)
}

func (s *BoltStore) ListReports() ([]*types.Report, error) {
	var out []*types.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReports).ForEach(func(k, v []byte) error {
			var r types.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, &r)
			return nil
		})
	})
	return out, err
}

// Assets

func (s *BoltStore) CreateAsset(key string, candidate *types.AssetCandidate) error {
	return s.putJSON(bucketAssets, key, candidate)
}

func (s *BoltStore) GetAsset(key string) (*types.AssetCandidate, error) {
	var candidate types.AssetCandidate
	if err := s.getJSON(bucketAssets, key, &candidate); err != nil {
		return nil, err
	}
	return &candidate, nil
}

func (s *BoltStore) ListAssets() ([]*types.AssetCandidate, error) {
	var out []*types.AssetCandidate
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAssets).ForEach(func(k, v []byte) error {
			var c types.AssetCandidate
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, &c)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteAsset(key string) error {
	return s.delete(bucketAssets, key)
}

// CA

func (s *BoltStore) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCA).Put(caKey, data)
	})
}

func (s *BoltStore) GetCA() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCA).Get(caKey)
		if v == nil {
			return fmt.Errorf("storage: CA not initialized")
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// Secrets

func (s *BoltStore) SaveSecret(secret *types.Secret) error {
	return s.putJSON(bucketSecrets, secret.ID, secret)
}

func (s *BoltStore) GetSecret(id string) (*types.Secret, error) {
	var secret types.Secret
	if err := s.getJSON(bucketSecrets, id, &secret); err != nil {
		return nil, err
	}
	return &secret, nil
}

func (s *BoltStore) DeleteSecret(id string) error {
	return s.delete(bucketSecrets, id)
}

func (s *BoltStore) ListSecrets() ([]*types.Secret, error) {
	var out []*types.Secret
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).ForEach(func(k, v []byte) error {
			var secret types.Secret
			if err := json.Unmarshal(v, &secret); err != nil {
				return err
			}
			out = append(out, &secret)
			return nil
		})
	})
	return out, err
}

// putJSON and getJSON centralize the marshal/Put and Get/unmarshal pair
// every bucket in this store repeats.
func (s *BoltStore) putJSON(bucket []byte, key string, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) getJSON(bucket []byte, key string, v interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("storage: %s not found in %s", key, bucket)
		}
		return json.Unmarshal(data, v)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}
