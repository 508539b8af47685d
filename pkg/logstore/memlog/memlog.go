// Package memlog is a disposable, in-process implementation of
// logstore.Log backed by a mutex-guarded slice. It is the default backend
// for the tree's own tests and for any caller that doesn't need
// durability.
package memlog

import (
	"context"
	"errors"
	"sync"

	"github.com/kustomzone/hyperbee/pkg/hberrors"
	"github.com/kustomzone/hyperbee/pkg/logstore"
)

var errOutOfRange = errors.New("seq out of range")

// Log is an in-memory append-only record store.
type Log struct {
	mu      sync.Mutex
	records [][]byte
	ready   bool
}

// New returns an empty Log.
func New() *Log {
	return &Log{}
}

var _ logstore.Log = (*Log)(nil)

// Ready marks the log usable. It never fails and is idempotent.
func (l *Log) Ready(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ready = true
	return nil
}

// Length returns the number of appended records.
func (l *Log) Length(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.records)), nil
}

// Get returns a copy of record seq's bytes.
func (l *Log) Get(_ context.Context, seq int64) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq < 0 || seq >= int64(len(l.records)) {
		return nil, hberrors.IoError("memlog.Get", errOutOfRange)
	}
	out := make([]byte, len(l.records[seq]))
	copy(out, l.records[seq])
	return out, nil
}

// Append adds data as a new record and returns its assigned seq.
func (l *Log) Append(_ context.Context, data []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := int64(len(l.records))
	cp := make([]byte, len(data))
	copy(cp, data)
	l.records = append(l.records, cp)
	return seq, nil
}
