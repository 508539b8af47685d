package btree

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/kustomzone/hyperbee/pkg/hberrors"
	"github.com/kustomzone/hyperbee/pkg/logstore"
	"github.com/kustomzone/hyperbee/pkg/wire"
)

// DefaultMaxChildren is M, the maximum number of children a node holds:
// a node carries up to 3 keys and splits on the insert that would give
// it a 4th.
const DefaultMaxChildren = 4

// headerPayload is the key of the seq-0 entry every tree starts with.
var headerPayload = []byte("hyperbee header")

// Tree is the public, concurrency-safe facade over a log-embedded
// copy-on-write B-tree. Reads never block; Put is serialized against
// itself to preserve the single-writer append discipline the log
// requires.
type Tree struct {
	log         logstore.Log
	maxChildren int
	logger      *log.Logger

	mu sync.Mutex
}

// Option configures a Tree at construction.
type Option func(*Tree)

// WithMaxChildren overrides M (the default is DefaultMaxChildren). Values
// below 3 are ignored, since a tree can't usefully split below that.
func WithMaxChildren(m int) Option {
	return func(t *Tree) {
		if m >= 3 {
			t.maxChildren = m
		}
	}
}

// WithLogger attaches a diagnostic logger; each Get, Put and
// CreateReadStream call prints one line with its batch id and operation.
func WithLogger(l *log.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.logger = l
		}
	}
}

// New wraps l as a Tree. Call Ready before use.
func New(l logstore.Log, opts ...Option) *Tree {
	t := &Tree{
		log:         l,
		maxChildren: DefaultMaxChildren,
		logger:      log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Ready opens the underlying log and, if it is empty, appends the header
// entry at seq 0. Idempotent and safe to call before every operation.
func (t *Tree) Ready(ctx context.Context) error {
	const op = "btree.Tree.Ready"
	if err := t.log.Ready(ctx); err != nil {
		return err
	}
	length, err := t.log.Length(ctx)
	if err != nil {
		return hberrors.IoError(op, err)
	}
	if length == 0 {
		header := wire.Node{Key: headerPayload}
		if _, err := t.log.Append(ctx, wire.EncodeNode(header)); err != nil {
			return hberrors.IoError(op, err)
		}
	}
	return nil
}

// Get returns the BlockEntry holding key's current value, or a nil
// BlockEntry if the key is absent.
func (t *Tree) Get(ctx context.Context, key []byte) (*BlockEntry, error) {
	if err := t.Ready(ctx); err != nil {
		return nil, err
	}
	b := newBatch(t)
	t.logger.Printf("batch %s get %q", b.id, key)
	return b.Get(ctx, key)
}

// Put inserts or overwrites key with value, appending exactly one log
// entry. Puts from concurrent goroutines are serialized; reads never
// block on a Put in progress.
func (t *Tree) Put(ctx context.Context, key, value []byte) error {
	if err := t.Ready(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b := newBatch(t)
	t.logger.Printf("batch %s put %q", b.id, key)
	return b.Put(ctx, key, value)
}

// CreateReadStream returns an iterator over every key in ascending order,
// as of the tree's state at the moment of the call.
func (t *Tree) CreateReadStream(ctx context.Context) (*Scan, error) {
	if err := t.Ready(ctx); err != nil {
		return nil, err
	}
	b := newBatch(t)
	t.logger.Printf("batch %s scan", b.id)
	root, _, err := b.getRoot(ctx)
	if err != nil {
		return nil, err
	}
	s := &Scan{batch: b}
	if root != nil {
		s.stack = []*frame{{node: root, i: 0}}
	}
	return s, nil
}

// Close releases the underlying log, if it supports closing.
func (t *Tree) Close() error {
	if closer, ok := t.log.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
