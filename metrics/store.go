package metrics

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/omron-net/omron-node/storage"
)

var samplePrefix = []byte("sample/")

// Store persists proof samples in a pebble database, newest-last by key so
// history reads can walk backwards from the most recent sample.
type Store struct {
	db  *pebble.DB
	seq atomic.Uint64
}

// OpenStore opens (or creates) a sample store at the given directory.
func OpenStore(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("could not open metrics store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (st *Store) Close() error {
	return st.db.Close()
}

// key orders samples by timestamp; the per-process sequence counter keeps
// keys unique within a nanosecond.
func (st *Store) key(s Sample) []byte {
	return fmt.Appendf(nil, "%s%020d/%012d", samplePrefix, s.At.UnixNano(), st.seq.Add(1))
}

// Put writes a sample synchronously.
func (st *Store) Put(s Sample) error {
	data, err := storage.EncodeArtifact(s)
	if err != nil {
		return fmt.Errorf("could not encode sample: %w", err)
	}
	if err := st.db.Set(st.key(s), data, pebble.Sync); err != nil {
		return fmt.Errorf("could not store sample: %w", err)
	}
	return nil
}

// History returns up to limit samples, newest first. A non-positive limit
// returns everything.
func (st *Store) History(limit int) ([]Sample, error) {
	upper := append(append([]byte{}, samplePrefix...), 0xff)
	iter, err := st.db.NewIter(&pebble.IterOptions{
		LowerBound: samplePrefix,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("could not iterate metrics store: %w", err)
	}
	defer func() { _ = iter.Close() }()
	var samples []Sample
	for ok := iter.Last(); ok; ok = iter.Prev() {
		if limit > 0 && len(samples) >= limit {
			break
		}
		var s Sample
		if err := storage.DecodeArtifact(iter.Value(), &s); err != nil {
			return nil, fmt.Errorf("could not decode sample %q: %w", iter.Key(), err)
		}
		samples = append(samples, s)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return samples, nil
}
