// Package store is the orchestration engine's durable backing store:
// a single bbolt database with one bucket per concern (agents,
// workflows, assignments, executions, schedule pool), ported from the
// teacher's WorkflowStore bucket layout in persistence.go.
package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	bucketAgents      = []byte("agents")
	bucketWorkflows   = []byte("workflows")
	bucketAssignments = []byte("assignments")
	bucketExecutions  = []byte("executions")
	bucketSchedule    = []byte("schedule_pool")
)

var allBuckets = [][]byte{bucketAgents, bucketWorkflows, bucketAssignments, bucketExecutions, bucketSchedule}

// Store wraps a bbolt database with typed per-bucket accessors.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt database at path and
// ensures every bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("orchestration/store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("orchestration/store: create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func put(db *bbolt.DB, bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("orchestration/store: marshal: %w", err)
	}
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func get[T any](db *bbolt.DB, bucket []byte, key string) (T, bool, error) {
	var out T
	var found bool
	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return out, false, fmt.Errorf("orchestration/store: get %s: %w", key, err)
	}
	return out, found, nil
}

func del(db *bbolt.DB, bucket []byte, key string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

func list[T any](db *bbolt.DB, bucket []byte) ([]T, error) {
	var out []T
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return nil // skip malformed entries rather than fail the whole scan
			}
			out = append(out, item)
			return nil
		})
	})
	return out, err
}

func (s *Store) PutAgent(id string, v any) error           { return put(s.db, bucketAgents, id, v) }
func (s *Store) DeleteAgent(id string) error                { return del(s.db, bucketAgents, id) }
func (s *Store) PutWorkflow(id string, v any) error         { return put(s.db, bucketWorkflows, id, v) }
func (s *Store) DeleteWorkflow(id string) error             { return del(s.db, bucketWorkflows, id) }
func (s *Store) PutAssignment(id string, v any) error       { return put(s.db, bucketAssignments, id, v) }
func (s *Store) DeleteAssignment(id string) error           { return del(s.db, bucketAssignments, id) }
func (s *Store) PutExecution(id string, v any) error        { return put(s.db, bucketExecutions, id, v) }
func (s *Store) DeleteExecution(id string) error            { return del(s.db, bucketExecutions, id) }
func (s *Store) PutScheduleEntry(id string, v any) error    { return put(s.db, bucketSchedule, id, v) }
func (s *Store) DeleteScheduleEntry(id string) error        { return del(s.db, bucketSchedule, id) }

func GetAgent[T any](s *Store, id string) (T, bool, error) { return get[T](s.db, bucketAgents, id) }
func GetWorkflow[T any](s *Store, id string) (T, bool, error) {
	return get[T](s.db, bucketWorkflows, id)
}
func GetAssignment[T any](s *Store, id string) (T, bool, error) {
	return get[T](s.db, bucketAssignments, id)
}
func GetExecution[T any](s *Store, id string) (T, bool, error) {
	return get[T](s.db, bucketExecutions, id)
}
func GetScheduleEntry[T any](s *Store, id string) (T, bool, error) {
	return get[T](s.db, bucketSchedule, id)
}

func ListAgents[T any](s *Store) ([]T, error)      { return list[T](s.db, bucketAgents) }
func ListWorkflows[T any](s *Store) ([]T, error)   { return list[T](s.db, bucketWorkflows) }
func ListAssignments[T any](s *Store) ([]T, error) { return list[T](s.db, bucketAssignments) }
func ListExecutions[T any](s *Store) ([]T, error)  { return list[T](s.db, bucketExecutions) }
func ListScheduleEntries[T any](s *Store) ([]T, error) {
	return list[T](s.db, bucketSchedule)
}
