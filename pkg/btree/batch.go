package btree

import (
	"context"

	"github.com/segmentio/ksuid"

	"github.com/kustomzone/hyperbee/pkg/hberrors"
	"github.com/kustomzone/hyperbee/pkg/wire"
)

// Batch is a per-operation scratchpad: every log entry it touches is
// decoded at most once and kept in blocks for the remainder of the
// operation, whether that operation is a get, a put, or a scan.
type Batch struct {
	tree   *Tree
	blocks map[int64]*BlockEntry
	order  int
	id     ksuid.KSUID
}

func newBatch(tree *Tree) *Batch {
	return &Batch{
		tree:   tree,
		blocks: make(map[int64]*BlockEntry),
		order:  tree.maxChildren,
		id:     ksuid.New(),
	}
}

// getBlock returns the BlockEntry for seq, decoding and caching it on
// first access.
func (b *Batch) getBlock(ctx context.Context, seq int64) (*BlockEntry, error) {
	if be, ok := b.blocks[seq]; ok {
		return be, nil
	}
	raw, err := b.tree.log.Get(ctx, seq)
	if err != nil {
		return nil, hberrors.IoError("btree.Batch.getBlock", err)
	}
	node, err := wire.DecodeNode(raw)
	if err != nil {
		return nil, err
	}
	be := &BlockEntry{seq: seq, raw: node, batch: b}
	b.blocks[seq] = be
	return be, nil
}

func (b *Batch) getKeyBytes(ctx context.Context, seq int64) ([]byte, error) {
	be, err := b.getBlock(ctx, seq)
	if err != nil {
		return nil, err
	}
	return be.raw.Key, nil
}

// freshBlock returns a placeholder BlockEntry for the entry this put will
// append, used only so nodes created fresh during the put (a new root)
// carry a batch back-reference.
func (b *Batch) freshBlock(seq int64) *BlockEntry {
	return &BlockEntry{seq: seq, batch: b}
}

// getRoot loads the current root node from the log entry at length-1, or
// returns a nil root and the observed length if the tree holds only its
// header entry (or nothing at all).
func (b *Batch) getRoot(ctx context.Context) (*TreeNode, int64, error) {
	length, err := b.tree.log.Length(ctx)
	if err != nil {
		return nil, 0, hberrors.IoError("btree.Batch.getRoot", err)
	}
	if length < 2 {
		return nil, length, nil
	}
	rootSeq := length - 1
	be, err := b.getBlock(ctx, rootSeq)
	if err != nil {
		return nil, 0, err
	}
	root, err := be.getTreeNode(0)
	if err != nil {
		return nil, 0, err
	}
	return root, length, nil
}

// Get walks the tree for key, returning the BlockEntry that introduced
// its current value, or a nil BlockEntry if the key is absent.
func (b *Batch) Get(ctx context.Context, key []byte) (*BlockEntry, error) {
	root, _, err := b.getRoot(ctx)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}
	node := root
	for {
		i, exact, err := node.findInsertPos(ctx, key)
		if err != nil {
			return nil, err
		}
		if exact {
			return b.getBlock(ctx, node.keys[i].seq)
		}
		if node.isLeaf() {
			return nil, nil
		}
		node, err = node.getChildNode(ctx, i)
		if err != nil {
			return nil, err
		}
	}
}

// Put inserts or overwrites key with value, rebuilding the changed spine
// of the tree and appending exactly one new log entry.
func (b *Batch) Put(ctx context.Context, key, value []byte) error {
	newSeq, err := b.tree.log.Length(ctx)
	if err != nil {
		return hberrors.IoError("btree.Batch.Put", err)
	}

	target := &keyRef{seq: newSeq, value: key, resolved: true}

	if newSeq < 2 {
		idx := wire.YoloIndex{Levels: []wire.Level{{Keys: []int64{newSeq}}}}
		rec := wire.Node{Key: key, Value: value, HasValue: true, Index: wire.EncodeYoloIndex(idx), HasIndex: true}
		appended, err := b.tree.log.Append(ctx, wire.EncodeNode(rec))
		if err != nil {
			return hberrors.IoError("btree.Batch.Put", err)
		}
		if appended != newSeq {
			return hberrors.InvariantViolation("btree.Batch.Put", "log assigned an unexpected seq to the new entry")
		}
		return nil
	}

	rootBlock, err := b.getBlock(ctx, newSeq-1)
	if err != nil {
		return err
	}
	root, err := rootBlock.getTreeNode(0)
	if err != nil {
		return err
	}

	var stack []*TreeNode
	node := root
descend:
	for {
		i, exact, err := node.findInsertPos(ctx, key)
		if err != nil {
			return err
		}
		if exact {
			node.setKey(i, target)
			break descend
		}
		if node.isLeaf() {
			notFull, err := node.insertKey(ctx, target, nil, b.order)
			if err != nil {
				return err
			}
			if notFull {
				break descend
			}

			median, right := node.split()
			left := node
			for {
				if len(stack) == 0 {
					newRoot := newTreeNode(b.freshBlock(newSeq))
					newRoot.keys = []*keyRef{median}
					newRoot.children = []*childRef{
						{node: left, resolved: true},
						{node: right, resolved: true},
					}
					newRoot.changed = true
					root = newRoot
					break descend
				}
				parent := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				notFull, err := parent.insertKey(ctx, median, right, b.order)
				if err != nil {
					return err
				}
				if notFull {
					break descend
				}
				median, right = parent.split()
				left = parent
			}
		}
		node.changed = true
		stack = append(stack, node)
		node, err = node.getChildNode(ctx, i)
		if err != nil {
			return err
		}
	}

	var indexList []wire.Level
	if _, err := root.buildIndex(ctx, &indexList, newSeq); err != nil {
		return err
	}
	rec := wire.Node{Key: key, Value: value, HasValue: true, Index: wire.EncodeYoloIndex(wire.YoloIndex{Levels: indexList}), HasIndex: true}
	appended, err := b.tree.log.Append(ctx, wire.EncodeNode(rec))
	if err != nil {
		return hberrors.IoError("btree.Batch.Put", err)
	}
	if appended != newSeq {
		return hberrors.InvariantViolation("btree.Batch.Put", "log assigned an unexpected seq to the new entry")
	}
	return nil
}
