// Package history persists emitted arbitrage recommendations in a bbolt file.
package history

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/types"

	"github.com/go-faster/errors"
	bolt "go.etcd.io/bbolt"
)

var signalsBucket = []byte("signals")

// Signal is a recorded recommendation
type Signal struct {
	Token          types.Token                `json:"token"`
	Symbol         string                     `json:"symbol,omitempty"`
	Recommendation aggregation.Recommendation `json:"recommendation"`
	Timestamp      time.Time                  `json:"timestamp"`
}

// Store is an append-only signal log ordered by time
type Store struct {
	db *bolt.DB
}

// Open opens or creates the store at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create history dir")
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(signalsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create signals bucket")
	}

	return &Store{db: db}, nil
}

// Record appends a signal. Signals sharing a timestamp are kept in insertion order.
func (s *Store) Record(sig Signal) error {
	if sig.Timestamp.IsZero() {
		sig.Timestamp = time.Now()
	}
	val, err := json.Marshal(sig)
	if err != nil {
		return errors.Wrap(err, "encode signal")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(signalsBucket)
		ts := uint64(sig.Timestamp.UnixNano())
		key := make([]byte, 8)
		for {
			binary.BigEndian.PutUint64(key, ts)
			if b.Get(key) == nil {
				break
			}
			ts++
		}
		return b.Put(key, val)
	})
}

// Recent returns up to limit signals, newest first
func (s *Store) Recent(limit int) ([]Signal, error) {
	if limit <= 0 {
		return []Signal{}, nil
	}

	out := make([]Signal, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(signalsBucket).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var sig Signal
			if err := json.Unmarshal(v, &sig); err != nil {
				return errors.Wrapf(err, "decode signal %x", k)
			}
			out = append(out, sig)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of stored signals
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(signalsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
