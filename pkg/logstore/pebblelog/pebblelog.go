// Package pebblelog implements logstore.Log on top of a cockroachdb/pebble
// LSM store. Records are keyed by an 8-byte big-endian
// sequence number; a dedicated metadata key tracks the log length and is
// written in the same pebble batch as the record, so a concurrent reader
// taking a pebble snapshot always sees a record and the length that
// accounts for it together.
package pebblelog

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/kustomzone/hyperbee/pkg/hberrors"
	"github.com/kustomzone/hyperbee/pkg/logstore"
)

var errSeqOutOfRange = errors.New("seq out of range")

// lengthKey is chosen with a 0xff prefix so it sorts after every
// big-endian-encoded record key, keeping it out of any future prefix scan
// over records.
var lengthKey = []byte{0xff, 'm', 'e', 't', 'a', ':', 'l', 'e', 'n', 'g', 't', 'h'}

// Log is a pebble-backed append-only record store.
type Log struct {
	mu    sync.Mutex
	path  string
	db    *pebble.DB
	ready bool
}

var _ logstore.Log = (*Log)(nil)

// New returns a Log that will open the pebble store at path once Ready is
// called.
func New(path string) *Log {
	return &Log{path: path}
}

// Ready opens the pebble database, creating it if necessary.
func (l *Log) Ready(_ context.Context) error {
	const op = "pebblelog.Ready"
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return nil
	}
	db, err := pebble.Open(l.path, &pebble.Options{})
	if err != nil {
		return hberrors.IoError(op, err)
	}
	l.db = db
	l.ready = true
	return nil
}

// Length returns the number of appended records, read from the length key.
func (l *Log) Length(_ context.Context) (int64, error) {
	const op = "pebblelog.Length"
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.length(op)
}

// length reads the length key. Caller must hold mu.
func (l *Log) length(op string) (int64, error) {
	v, closer, err := l.db.Get(lengthKey)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, hberrors.IoError(op, err)
	}
	defer closer.Close()
	return int64(binary.BigEndian.Uint64(v)), nil
}

// Get reads the record stored under seq.
func (l *Log) Get(_ context.Context, seq int64) ([]byte, error) {
	const op = "pebblelog.Get"
	l.mu.Lock()
	defer l.mu.Unlock()
	v, closer, err := l.db.Get(seqKey(seq))
	if err == pebble.ErrNotFound {
		return nil, hberrors.IoError(op, errSeqOutOfRange)
	}
	if err != nil {
		return nil, hberrors.IoError(op, err)
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Append writes data under the next sequence number and bumps the length
// key in the same pebble batch.
func (l *Log) Append(_ context.Context, data []byte) (int64, error) {
	const op = "pebblelog.Append"
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.length(op)
	if err != nil {
		return 0, err
	}

	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(seqKey(n), data, nil); err != nil {
		return 0, hberrors.IoError(op, err)
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(n+1))
	if err := b.Set(lengthKey, lenBuf[:], nil); err != nil {
		return 0, hberrors.IoError(op, err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, hberrors.IoError(op, err)
	}
	return n, nil
}

// Close closes the underlying pebble database.
func (l *Log) Close() error {
	const op = "pebblelog.Close"
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready {
		return nil
	}
	if err := l.db.Close(); err != nil {
		return hberrors.IoError(op, err)
	}
	return nil
}

func seqKey(seq int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(seq))
	return k[:]
}
