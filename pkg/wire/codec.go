// Package wire implements the bit-exact, length-delimited encoding for the
// two on-log records a hyperbee entry can hold: the per-entry YoloIndex (a
// snapshot of the tree rooted at offset 0) and the Node record that wraps a
// key, an optional value, and an optional encoded YoloIndex.
//
// The codec never interprets field contents; it only preserves shape and
// ordering so that an index written by one process is readable by another.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/kustomzone/hyperbee/pkg/hberrors"
)

var errInvalidCount = errors.New("element count out of range")

// ChildRef is a flattened (seq, offset) pair identifying another tree node:
// the log entry carrying its embedded index, and that index's level offset.
type ChildRef struct {
	Seq    int64
	Offset int64
}

// Level is one node's slot inside an embedded index. Keys are sequence
// numbers of the log entries that carry the actual key bytes; Children is
// present only for non-leaf levels.
type Level struct {
	Keys     []int64
	Children []ChildRef
}

// YoloIndex is the full per-entry snapshot: levels ordered from root
// (offset 0) to leaves.
type YoloIndex struct {
	Levels []Level
}

// Node is one decoded log record.
type Node struct {
	Key      []byte
	Value    []byte // nil iff HasValue is false
	HasValue bool
	Index    []byte // nil iff HasIndex is false (absent on the header entry)
	HasIndex bool
}

const (
	flagHasValue = 1 << 0
	flagHasIndex = 1 << 1
)

// EncodeNode serializes a Node record.
//
// Framing: [flags byte][varint len(key)][key]
//          {if HasValue: [varint len(value)][value]}
//          {if HasIndex: [varint len(index)][index]}
func EncodeNode(n Node) []byte {
	var buf bytes.Buffer
	var flags byte
	if n.HasValue {
		flags |= flagHasValue
	}
	if n.HasIndex {
		flags |= flagHasIndex
	}
	buf.WriteByte(flags)
	writeBytes(&buf, n.Key)
	if n.HasValue {
		writeBytes(&buf, n.Value)
	}
	if n.HasIndex {
		writeBytes(&buf, n.Index)
	}
	return buf.Bytes()
}

// DecodeNode parses a Node record previously produced by EncodeNode.
func DecodeNode(data []byte) (Node, error) {
	const op = "wire.DecodeNode"
	r := bytes.NewReader(data)
	flags, err := r.ReadByte()
	if err != nil {
		return Node{}, hberrors.Corrupt(op, err)
	}
	key, err := readBytes(r)
	if err != nil {
		return Node{}, hberrors.Corrupt(op, err)
	}
	n := Node{Key: key}
	if flags&flagHasValue != 0 {
		v, err := readBytes(r)
		if err != nil {
			return Node{}, hberrors.Corrupt(op, err)
		}
		n.Value = v
		n.HasValue = true
	}
	if flags&flagHasIndex != 0 {
		idx, err := readBytes(r)
		if err != nil {
			return Node{}, hberrors.Corrupt(op, err)
		}
		n.Index = idx
		n.HasIndex = true
	}
	if r.Len() != 0 {
		return Node{}, hberrors.Corrupt(op, io.ErrUnexpectedEOF)
	}
	return n, nil
}

// EncodeYoloIndex serializes a YoloIndex.
//
// Framing: [varint numLevels]
//   per level: [varint numKeys]{varint key_seq}*
//              [varint numChildPairs]{varint seq, varint offset}*
func EncodeYoloIndex(idx YoloIndex) []byte {
	var buf bytes.Buffer
	writeVarint(&buf, int64(len(idx.Levels)))
	for _, lvl := range idx.Levels {
		writeVarint(&buf, int64(len(lvl.Keys)))
		for _, k := range lvl.Keys {
			writeVarint(&buf, k)
		}
		writeVarint(&buf, int64(len(lvl.Children)))
		for _, c := range lvl.Children {
			writeVarint(&buf, c.Seq)
			writeVarint(&buf, c.Offset)
		}
	}
	return buf.Bytes()
}

// DecodeYoloIndex parses a YoloIndex previously produced by
// EncodeYoloIndex.
func DecodeYoloIndex(data []byte) (YoloIndex, error) {
	const op = "wire.DecodeYoloIndex"
	r := bytes.NewReader(data)
	numLevels, err := readVarint(r)
	if err != nil {
		return YoloIndex{}, hberrors.Corrupt(op, err)
	}
	if numLevels < 0 || numLevels > 1<<20 {
		return YoloIndex{}, hberrors.Corrupt(op, errInvalidCount)
	}
	levels := make([]Level, 0, numLevels)
	for i := int64(0); i < numLevels; i++ {
		numKeys, err := readVarint(r)
		if err != nil {
			return YoloIndex{}, hberrors.Corrupt(op, err)
		}
		if numKeys < 0 || numKeys > 1<<20 {
			return YoloIndex{}, hberrors.Corrupt(op, errInvalidCount)
		}
		keys := make([]int64, numKeys)
		for j := range keys {
			keys[j], err = readVarint(r)
			if err != nil {
				return YoloIndex{}, hberrors.Corrupt(op, err)
			}
		}
		numChildren, err := readVarint(r)
		if err != nil {
			return YoloIndex{}, hberrors.Corrupt(op, err)
		}
		if numChildren < 0 || numChildren > 1<<20 {
			return YoloIndex{}, hberrors.Corrupt(op, errInvalidCount)
		}
		var children []ChildRef
		if numChildren > 0 {
			children = make([]ChildRef, numChildren)
		}
		for j := range children {
			seq, err := readVarint(r)
			if err != nil {
				return YoloIndex{}, hberrors.Corrupt(op, err)
			}
			offset, err := readVarint(r)
			if err != nil {
				return YoloIndex{}, hberrors.Corrupt(op, err)
			}
			children[j] = ChildRef{Seq: seq, Offset: offset}
		}
		levels = append(levels, Level{Keys: keys, Children: children})
	}
	if r.Len() != 0 {
		return YoloIndex{}, hberrors.Corrupt(op, io.ErrUnexpectedEOF)
	}
	return YoloIndex{Levels: levels}, nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeVarint(buf, int64(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readVarint(r)
	if err != nil {
		return nil, err
	}
	if n < 0 || int64(r.Len()) < n {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeVarint(buf *bytes.Buffer, v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readVarint(r *bytes.Reader) (int64, error) {
	v, err := binary.ReadVarint(r)
	if err != nil {
		return 0, err
	}
	return v, nil
}
