package btree

import "context"

// frame is one level of an in-progress in-order traversal. i interleaves
// children and keys: i even means "consider descending into child i>>1
// next", i odd means "emit key i>>1 next". A K-key node has actions for
// i in 0..2K inclusive (child0,key0,...,key(K-1),childK); a frame is
// exhausted once i has advanced past childK's action.
type frame struct {
	node *TreeNode
	i    int
}

// Scan is a forward-only, in-order iterator over a tree snapshot. It is
// not restartable; call Tree.CreateReadStream again for a fresh pass.
type Scan struct {
	batch *Batch
	stack []*frame
}

// Next returns the BlockEntry for the next key in ascending order, or a
// nil BlockEntry once the scan is exhausted. Any error aborts the scan;
// the caller should not call Next again afterward.
func (s *Scan) Next(ctx context.Context) (*BlockEntry, error) {
	for len(s.stack) > 0 {
		f := s.stack[len(s.stack)-1]
		// Action sequence for a K-key node is child0,key0,...,key(K-1),
		// childK: i runs 0..2K inclusive, so the frame is only exhausted
		// once i has advanced past childK's own action at i == 2*K.
		if f.i > 2*len(f.node.keys) {
			s.stack = s.stack[:len(s.stack)-1]
			continue
		}
		ki := f.i >> 1

		if f.i%2 == 0 {
			if !f.node.isLeaf() {
				child, err := f.node.getChildNode(ctx, ki)
				if err != nil {
					return nil, err
				}
				f.i++
				s.stack = append(s.stack, &frame{node: child, i: 0})
				continue
			}
			f.i++
			continue
		}

		kr := f.node.keys[ki]
		f.i++
		be, err := s.batch.getBlock(ctx, kr.seq)
		if err != nil {
			return nil, err
		}
		return be, nil
	}
	return nil, nil
}
