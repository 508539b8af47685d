package memlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemLogAppendAndGet(t *testing.T) {
	ctx := context.Background()
	l := New()
	require.NoError(t, l.Ready(ctx))

	n, err := l.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	seq, err := l.Append(ctx, []byte("header"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	seq, err = l.Append(ctx, []byte("entry-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	n, err = l.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := l.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("entry-1"), got)

	_, err = l.Get(ctx, 2)
	assert.Error(t, err)
	_, err = l.Get(ctx, -1)
	assert.Error(t, err)
}

func TestMemLogGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	l := New()
	_, err := l.Append(ctx, []byte("abc"))
	require.NoError(t, err)

	got, err := l.Get(ctx, 0)
	require.NoError(t, err)
	got[0] = 'z'

	got2, err := l.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, byte('a'), got2[0])
}
