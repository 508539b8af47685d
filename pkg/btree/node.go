// Package btree implements the copy-on-write B-tree described by the
// spec: nodes are embedded inside log entries, mutations rebuild only the
// changed spine into a single fresh entry, and readers dereference keys
// and children lazily through a per-operation Batch.
package btree

import (
	"bytes"
	"context"
	"fmt"

	"github.com/kustomzone/hyperbee/pkg/hberrors"
	"github.com/kustomzone/hyperbee/pkg/wire"
)

// keyRef is a lazy pointer to a key living in some log entry. value is
// absent (resolved == false) until the first dereference.
type keyRef struct {
	seq      int64
	value    []byte
	resolved bool
}

// childRef is a lazy pointer to a subtree: either a (seq, offset) pair
// into some past log entry, or — for nodes spliced in during the current
// put — a direct in-memory node handle.
type childRef struct {
	seq      int64
	offset   int64
	node     *TreeNode
	resolved bool
}

// TreeNode is the in-memory view of one B-tree node. It is either
// "original" (materialized from a BlockEntry's decoded index, with
// unresolved key/child slots) or "fresh" (created during the current put,
// changed from the moment it exists).
type TreeNode struct {
	block    *BlockEntry
	keys     []*keyRef
	children []*childRef
	changed  bool
}

func newTreeNode(block *BlockEntry) *TreeNode {
	return &TreeNode{block: block}
}

func (n *TreeNode) isLeaf() bool {
	return len(n.children) == 0
}

// getKey resolves and returns the bytes of the i-th key, caching the
// result in the slot.
func (n *TreeNode) getKey(ctx context.Context, i int) ([]byte, error) {
	kr := n.keys[i]
	return n.resolveKey(ctx, kr)
}

func (n *TreeNode) resolveKey(ctx context.Context, kr *keyRef) ([]byte, error) {
	if kr.resolved {
		return kr.value, nil
	}
	if n.block != nil && n.block.raw.Key != nil && kr.seq == n.block.seq {
		kr.value = n.block.raw.Key
		kr.resolved = true
		return kr.value, nil
	}
	v, err := n.block.batch.getKeyBytes(ctx, kr.seq)
	if err != nil {
		return nil, err
	}
	kr.value = v
	kr.resolved = true
	return v, nil
}

// getChildNode resolves and returns the i-th child, caching the
// materialized node in the slot.
func (n *TreeNode) getChildNode(ctx context.Context, i int) (*TreeNode, error) {
	cr := n.children[i]
	if cr.resolved {
		return cr.node, nil
	}
	var childBlock *BlockEntry
	if n.block != nil && cr.seq == n.block.seq {
		childBlock = n.block
	} else {
		var err error
		childBlock, err = n.block.batch.getBlock(ctx, cr.seq)
		if err != nil {
			return nil, err
		}
	}
	child, err := childBlock.getTreeNode(cr.offset)
	if err != nil {
		return nil, err
	}
	cr.node = child
	cr.resolved = true
	return child, nil
}

// setKey replaces the key at position i in place. The caller guarantees
// the replacement compares equal to the key it replaces.
func (n *TreeNode) setKey(i int, kr *keyRef) {
	n.keys[i] = kr
	n.changed = true
}

// findInsertPos binary-searches the node's keys for key, materializing
// midpoints with getKey. It returns the insertion position and whether an
// exact match was found there.
func (n *TreeNode) findInsertPos(ctx context.Context, key []byte) (int, bool, error) {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		kb, err := n.getKey(ctx, mid)
		if err != nil {
			return 0, false, err
		}
		switch bytes.Compare(key, kb) {
		case 0:
			return mid, true, nil
		case -1:
			hi = mid
		default:
			lo = mid + 1
		}
	}
	return lo, false, nil
}

// insertKey binary-searches for kr's key bytes and either overwrites an
// equal existing key in place, or splices kr (and, for an internal node,
// the right-sibling child produced by a leaf split) into position. A node
// holds up to order-1 keys at capacity; it only needs to split once an
// insert pushes it to order keys (order-1 would split one put early: with
// order=4 a leaf must still hold 3 keys untouched after its third put and
// only split on the put that would give it a 4th). insertKey returns true
// iff the node does not need to split after the insert (len(keys) <
// order).
func (n *TreeNode) insertKey(ctx context.Context, kr *keyRef, child *TreeNode, order int) (bool, error) {
	kb, err := n.resolveKey(ctx, kr)
	if err != nil {
		return false, err
	}
	i, exact, err := n.findInsertPos(ctx, kb)
	if err != nil {
		return false, err
	}
	if exact {
		n.setKey(i, kr)
		return true, nil
	}

	n.keys = append(n.keys, nil)
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = kr

	if child != nil {
		n.children = append(n.children, nil)
		copy(n.children[i+2:], n.children[i+1:])
		n.children[i+1] = &childRef{node: child, resolved: true}
	}
	n.changed = true
	return len(n.keys) < order, nil
}

// split pops the node's upper half into a fresh right sibling and returns
// the median key that separates left (the receiver, mutated in place)
// from right.
func (n *TreeNode) split() (median *keyRef, right *TreeNode) {
	h := len(n.keys) / 2
	start := len(n.keys) - h

	rightKeys := append([]*keyRef(nil), n.keys[start:]...)
	n.keys = n.keys[:start]

	medianIdx := len(n.keys) - 1
	median = n.keys[medianIdx]
	n.keys = n.keys[:medianIdx]

	var rightChildren []*childRef
	if !n.isLeaf() {
		cstart := len(n.children) - (h + 1)
		rightChildren = append([]*childRef(nil), n.children[cstart:]...)
		n.children = n.children[:cstart]
	}

	right = newTreeNode(n.block)
	right.keys = rightKeys
	right.children = rightChildren
	right.changed = true
	n.changed = true
	return median, right
}

// buildIndex serializes this node (and, recursively, every changed
// descendant) into indexList, reserving its own slot first so the result
// is a post-order encoding of only the changed spine. It returns the
// offset of the reserved slot.
func (n *TreeNode) buildIndex(ctx context.Context, indexList *[]wire.Level, newSeq int64) (int64, error) {
	offset := int64(len(*indexList))
	*indexList = append(*indexList, wire.Level{})

	keys := make([]int64, len(n.keys))
	for i, kr := range n.keys {
		keys[i] = kr.seq
	}

	children := make([]wire.ChildRef, len(n.children))
	for i, cr := range n.children {
		if cr.resolved && cr.node != nil && cr.node.changed {
			childOffset, err := cr.node.buildIndex(ctx, indexList, newSeq)
			if err != nil {
				return 0, err
			}
			children[i] = wire.ChildRef{Seq: newSeq, Offset: childOffset}
		} else {
			children[i] = wire.ChildRef{Seq: cr.seq, Offset: cr.offset}
		}
	}

	(*indexList)[offset] = wire.Level{Keys: keys, Children: children}
	return offset, nil
}

// BlockEntry wraps one decoded log record. Its embedded index is inflated
// lazily, on the first call to getTreeNode, and the raw bytes are dropped
// once that happens.
type BlockEntry struct {
	seq   int64
	raw   wire.Node
	index *wire.YoloIndex
	batch *Batch
}

// Seq is the log sequence number this entry was read from (or, for the
// entry currently being built by a put, will be assigned).
func (be *BlockEntry) Seq() int64 { return be.seq }

// Key is this entry's key field.
func (be *BlockEntry) Key() []byte { return be.raw.Key }

// Value is this entry's value field, or nil if the entry carries none
// (e.g. the header entry).
func (be *BlockEntry) Value() []byte { return be.raw.Value }

// getTreeNode inflates the stored index blob on first call, then returns
// a fresh TreeNode view of the level at offset, backed by be.
func (be *BlockEntry) getTreeNode(offset int64) (*TreeNode, error) {
	const op = "btree.BlockEntry.getTreeNode"
	if be.index == nil {
		if !be.raw.HasIndex {
			return nil, hberrors.InvariantViolation(op, fmt.Sprintf("entry %d has no embedded index", be.seq))
		}
		idx, err := wire.DecodeYoloIndex(be.raw.Index)
		if err != nil {
			return nil, err
		}
		be.index = &idx
		be.raw.Index = nil
	}
	if offset < 0 || int(offset) >= len(be.index.Levels) {
		return nil, hberrors.InvariantViolation(op, fmt.Sprintf("offset %d out of range for entry %d", offset, be.seq))
	}
	level := be.index.Levels[offset]

	node := newTreeNode(be)
	node.keys = make([]*keyRef, len(level.Keys))
	for i, s := range level.Keys {
		node.keys[i] = &keyRef{seq: s}
	}
	node.children = make([]*childRef, len(level.Children))
	for i, c := range level.Children {
		node.children[i] = &childRef{seq: c.Seq, offset: c.Offset}
	}
	return node, nil
}
