package filelog

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hyperbee.data")
	l := New(Config{FilePath: path})
	require.NoError(t, l.Ready(context.Background()))
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func TestFileLogAppendGetReopen(t *testing.T) {
	ctx := context.Background()
	l, path := newTestLog(t)

	seq0, err := l.Append(ctx, []byte("header"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq0)

	seq1, err := l.Append(ctx, []byte("entry-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq1)

	got, err := l.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("entry-1"), got)

	require.NoError(t, l.Close())

	// Reopen against the same file; the index must rebuild correctly.
	reopened := New(Config{FilePath: path})
	require.NoError(t, reopened.Ready(ctx))
	defer reopened.Close()

	n, err := reopened.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err = reopened.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("header"), got)
}

func TestFileLogTruncatedTailIsDropped(t *testing.T) {
	ctx := context.Background()
	l, path := newTestLog(t)

	_, err := l.Append(ctx, []byte("a"))
	require.NoError(t, err)
	_, err = l.Append(ctx, []byte("bb"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// Simulate a crash mid-write: append a torn frame header with no
	// payload.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], 100)
	_, err = f.Write(header[:])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened := New(Config{FilePath: path})
	require.NoError(t, reopened.Ready(ctx))
	defer reopened.Close()

	n, err := reopened.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "torn trailing frame must not be counted")

	got, err := reopened.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("bb"), got)

	// The store must remain writable after recovery.
	seq, err := reopened.Append(ctx, []byte("ccc"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
}

func TestFileLogOutOfRange(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t)
	_, err := l.Get(ctx, 0)
	assert.Error(t, err)
	_, err = l.Get(ctx, -1)
	assert.Error(t, err)
}
