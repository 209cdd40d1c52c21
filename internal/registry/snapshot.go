package registry

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/willwooten/thermidor/internal/workflow"
)

var bucketSnapshots = []byte("snapshots")

// SnapshotStore is a bbolt-backed read-side cache of each workflow's last
// checkpointed state. The HTTP projection reads exclusively from here
// instead of taking each workflow's exclusive guard, adapted from the
// teacher's persistence.go (go.etcd.io/bbolt chosen, per that file's own
// comment, for being pure Go with no C dependency) but repurposed from a
// write-through workflow store into a dedicated snapshot-on-read cache:
// the fix the specification's design notes call for to stop HTTP reads
// blocking behind an in-flight scheduler run.
type SnapshotStore struct {
	db *bbolt.DB
}

// OpenSnapshotStore opens (creating if absent) the bbolt file at path.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: open snapshot store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: create snapshot bucket: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

// Close releases the underlying bbolt file.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Put writes the current state of w under name, overwriting any prior
// snapshot. It is called after every scheduler checkpoint, so a reader
// never sees a workflow more than one wave stale.
func (s *SnapshotStore) Put(name string, w *workflow.Workflow) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("registry: marshal snapshot for %q: %w", name, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte(name), data)
	})
}

// Get returns the most recently stored snapshot for name, or (nil, false)
// if none has been written yet.
func (s *SnapshotStore) Get(name string) (*workflow.Workflow, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSnapshots).Get([]byte(name))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("registry: read snapshot for %q: %w", name, err)
	}
	if data == nil {
		return nil, false, nil
	}

	w := workflow.New()
	if err := json.Unmarshal(data, w); err != nil {
		return nil, false, fmt.Errorf("registry: unmarshal snapshot for %q: %w", name, err)
	}
	return w, true, nil
}
