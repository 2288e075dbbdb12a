// Package storage provides a durable checkpoint store for autopilotd's
// in-memory state: BudgetTracker snapshots and per-task SubtaskLists.
//
// Grounded on the teacher's internal/storage.Storage interface shape
// (WriteX/ReadX/Init/Close) and backed by go.etcd.io/bbolt, the
// embedded key-value store cuemby-warren and IAmSoThirsty-Project-AI
// both use for durable local daemon state, in place of the teacher's
// flat-file JSON writer.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketBudget   = []byte("budget_checkpoints")
	bucketSubtasks = []byte("subtask_lists")
)

// Store is a bbolt-backed checkpoint store.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt database at path and
// ensures the required buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBudget); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketSubtasks)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: init buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// BudgetCheckpoint is the persisted snapshot of a BudgetTracker.
type BudgetCheckpoint struct {
	AgentID      string    `json:"agent_id"`
	CurrentDate  string    `json:"current_date"`
	DailySpent   uint64    `json:"daily_spent_sats"`
	TickSpent    uint64    `json:"tick_spent_sats"`
	Violations   uint64    `json:"violations_today"`
	SavedAt      time.Time `json:"saved_at"`
}

// WriteBudgetCheckpoint persists a budget snapshot keyed by agent id.
func (s *Store) WriteBudgetCheckpoint(c BudgetCheckpoint) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("storage: marshal budget checkpoint: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBudget).Put([]byte(c.AgentID), data)
	})
}

// ReadBudgetCheckpoint retrieves the last saved budget snapshot for an
// agent id, or (BudgetCheckpoint{}, false, nil) if none exists.
func (s *Store) ReadBudgetCheckpoint(agentID string) (BudgetCheckpoint, bool, error) {
	var c BudgetCheckpoint
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketBudget).Get([]byte(agentID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &c)
	})
	if err != nil {
		return BudgetCheckpoint{}, false, fmt.Errorf("storage: read budget checkpoint: %w", err)
	}
	return c, found, nil
}

// WriteSubtaskList persists a subtask list keyed by task id, rewriting
// in place (matches spec.md §4.5's "updates are rewrite-in-place").
func (s *Store) WriteSubtaskList(taskID string, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSubtasks).Put([]byte(taskID), data)
	})
}

// ReadSubtaskList retrieves the raw persisted bytes for a task id.
func (s *Store) ReadSubtaskList(taskID string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSubtasks).Get([]byte(taskID))
		if v == nil {
			return nil
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

// ListTaskIDs returns every task id with a persisted subtask list.
func (s *Store) ListTaskIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSubtasks).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}
