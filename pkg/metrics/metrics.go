package metrics

import (
	"encoding/binary"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"
)

var (
	mu sync.Mutex
	db *bbolt.DB
)

var gaugeBucket = []byte("gauges")

// InitMetrics opens the gauge store under the application workdir.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	if db != nil {
		return nil
	}
	d, err := bbolt.Open(filepath.Join(workdir, "metrics.db"), 0o600, nil)
	if err != nil {
		return err
	}
	err = d.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(gaugeBucket)
		return err
	})
	if err != nil {
		_ = d.Close()
		return err
	}
	db = d
	return nil
}

// SetGauge stores the latest value for a named gauge. A nil store is a no-op
// so callers never need to guard on initialization failures.
func SetGauge(name string, value int64) {
	mu.Lock()
	d := db
	mu.Unlock()
	if d == nil {
		return
	}
	_ = d.Update(func(tx *bbolt.Tx) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(value))
		return tx.Bucket(gaugeBucket).Put([]byte(name), buf)
	})
}

// GetGauge returns the stored value for a gauge, zero when absent.
func GetGauge(name string) int64 {
	mu.Lock()
	d := db
	mu.Unlock()
	if d == nil {
		return 0
	}
	var v int64
	_ = d.View(func(tx *bbolt.Tx) error {
		if buf := tx.Bucket(gaugeBucket).Get([]byte(name)); len(buf) == 8 {
			v = int64(binary.BigEndian.Uint64(buf))
		}
		return nil
	})
	return v
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}
