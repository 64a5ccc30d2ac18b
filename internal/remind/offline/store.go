// Package offline keeps a local snapshot of active reminders so due doses
// can still raise notifications when the backend is unreachable. Snapshots
// live in an embedded Badger store keyed by reminder ID; a background sweep
// wakes about once a minute and notifies anything due.
package offline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no snapshot exists for a reminder.
var ErrNotFound = errors.New("snapshot not found")

const (
	snapshotPrefix = "snapshot:"
	notifiedPrefix = "notified:"

	// notifiedTTL bounds how long delivery markers are kept. Two days
	// comfortably outlives any dose interval worth deduplicating.
	notifiedTTL = 48 * time.Hour
)

// Snapshot is the offline copy of one active reminder.
type Snapshot struct {
	ReminderID     uuid.UUID `json:"reminder_id"`
	MedicationName string    `json:"medication_name"`
	DoseText       string    `json:"dose_text"`
	NextDoseAt     time.Time `json:"next_dose_at"`
	Active         bool      `json:"active"`
	SyncedAt       time.Time `json:"synced_at"`
}

// Store persists reminder snapshots and notification delivery markers.
type Store struct {
	db *badger.DB
}

// Open creates a Store at the given path. An empty path opens an in-memory
// store.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func snapshotKey(id uuid.UUID) []byte {
	return []byte(snapshotPrefix + id.String())
}

func notifiedKey(id uuid.UUID, dueAt time.Time) []byte {
	return []byte(notifiedPrefix + id.String() + "|" + dueAt.UTC().Format(time.RFC3339))
}

// Put writes or replaces the snapshot for a reminder.
func (s *Store) Put(snap Snapshot) error {
	val, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snap.ReminderID), val)
	})
}

// Get reads the snapshot for a reminder.
func (s *Store) Get(id uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	return snap, err
}

// Delete removes a reminder's snapshot.
func (s *Store) Delete(id uuid.UUID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(id))
	})
}

// List returns every stored snapshot.
func (s *Store) List() ([]Snapshot, error) {
	var out []Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(snapshotPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var snap Snapshot
				if err := json.Unmarshal(val, &snap); err != nil {
					return err
				}
				out = append(out, snap)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Replace swaps the full snapshot set for the given one in a single
// transaction, so a sync from the backend leaves no stale entries behind.
func (s *Store) Replace(snaps []Snapshot) error {
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(snapshotPrefix)})
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for _, snap := range snaps {
			val, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			if err := txn.Set(snapshotKey(snap.ReminderID), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkNotified records that a notification went out for the given reminder
// and dose time. It returns false when a marker already exists, which makes
// delivery idempotent per (reminder, dose time) pair.
func (s *Store) MarkNotified(id uuid.UUID, dueAt time.Time) (bool, error) {
	key := notifiedKey(id, dueAt)
	first := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		first = true
		entry := badger.NewEntry(key, []byte{1}).WithTTL(notifiedTTL)
		return txn.SetEntry(entry)
	})
	return first, err
}

// ClearNotified removes a delivery marker so a failed send can be retried on
// the next sweep.
func (s *Store) ClearNotified(id uuid.UUID, dueAt time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(notifiedKey(id, dueAt))
	})
}
