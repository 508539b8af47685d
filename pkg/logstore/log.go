// Package logstore declares the Log contract the btree package is built
// against: a sequentially numbered, append-only sequence of immutable byte
// records. The log itself is an external collaborator — this package only
// pins down the interface; concrete backends live in the memlog, filelog,
// and pebblelog subpackages.
package logstore

import "context"

// Log is the append-only record store the tree is layered on top of.
// Implementations must guarantee: records are immutable once appended;
// Append assigns the new record seq = Length() as observed immediately
// before the append lands; Get(seq) for seq < Length() never fails with a
// not-found error once ready.
type Log interface {
	// Ready ensures the log is open and its length is readable. Idempotent.
	Ready(ctx context.Context) error

	// Length returns the number of appended records.
	Length(ctx context.Context) (int64, error)

	// Get reads the raw bytes of record seq.
	Get(ctx context.Context, seq int64) ([]byte, error)

	// Append adds one record and returns the seq it was assigned
	// (equal to Length() immediately before the call).
	Append(ctx context.Context, data []byte) (int64, error)
}
