package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		n    Node
	}{
		{"header entry, no value no index", Node{Key: []byte("header")}},
		{"leaf entry", Node{Key: []byte("a"), Value: []byte("1"), HasValue: true}},
		{"entry with index only", Node{Key: []byte("b"), Index: []byte{0x01, 0x02}, HasIndex: true}},
		{"entry with value and index", Node{
			Key: []byte("c"), Value: []byte("3"), HasValue: true,
			Index: []byte{0xde, 0xad, 0xbe, 0xef}, HasIndex: true,
		}},
		{"empty key and value", Node{Key: []byte{}, Value: []byte{}, HasValue: true}},
		{"binary key", Node{Key: []byte{0x00, 0xff, 0x10}, Value: []byte("v"), HasValue: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc := EncodeNode(tc.n)
			got, err := DecodeNode(enc)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tc.n.Key, got.Key))
			assert.Equal(t, tc.n.HasValue, got.HasValue)
			assert.Equal(t, tc.n.HasIndex, got.HasIndex)
			if tc.n.HasValue {
				assert.True(t, bytes.Equal(tc.n.Value, got.Value))
			}
			if tc.n.HasIndex {
				assert.True(t, bytes.Equal(tc.n.Index, got.Index))
			}
		})
	}
}

func TestDecodeNodeTruncated(t *testing.T) {
	full := EncodeNode(Node{Key: []byte("k"), Value: []byte("v"), HasValue: true})
	for i := 0; i < len(full); i++ {
		_, err := DecodeNode(full[:i])
		assert.Error(t, err, "truncation at byte %d should fail", i)
	}
}

func TestYoloIndexEncodeDecodeRoundTrip(t *testing.T) {
	idx := YoloIndex{Levels: []Level{
		{Keys: []int64{10, 11}, Children: []ChildRef{{Seq: 1, Offset: 0}, {Seq: 1, Offset: 1}, {Seq: 2, Offset: 0}}},
		{Keys: []int64{9}, Children: nil},
		{Keys: []int64{12}, Children: nil},
	}}

	enc := EncodeYoloIndex(idx)
	got, err := DecodeYoloIndex(enc)
	require.NoError(t, err)
	require.Equal(t, len(idx.Levels), len(got.Levels))
	for i := range idx.Levels {
		assert.Equal(t, idx.Levels[i].Keys, got.Levels[i].Keys)
		assert.Equal(t, idx.Levels[i].Children, got.Levels[i].Children)
	}
}

func TestYoloIndexEmpty(t *testing.T) {
	enc := EncodeYoloIndex(YoloIndex{})
	got, err := DecodeYoloIndex(enc)
	require.NoError(t, err)
	assert.Empty(t, got.Levels)
}

func TestDecodeYoloIndexCorrupt(t *testing.T) {
	_, err := DecodeYoloIndex([]byte{0x01, 0x01})
	assert.Error(t, err)
}
