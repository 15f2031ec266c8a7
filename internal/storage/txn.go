package storage

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// OpKind is the kind of a buffered operation.
type OpKind uint8

const (
	OpSet OpKind = iota + 1
	OpDelete
)

// Op is one buffered write.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// Txn buffers writes until a Store commits them atomically.
//
// Operations are applied in the order they were added, so a later
// operation on the same key wins. Reads through a Store never observe a
// Txn's pending operations.
type Txn struct {
	mu   sync.Mutex
	id   ulid.ULID
	ops  []Op
	done bool
}

// NewTxn creates an empty transaction.
func NewTxn() *Txn {
	return &Txn{id: ulid.Make()}
}

// ID returns a unique, time-ordered identifier for log correlation.
func (t *Txn) ID() string {
	return t.id.String()
}

// Set buffers key=value. Both slices are copied.
func (t *Txn) Set(key, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if value == nil {
		value = []byte{}
	}
	t.ops = append(t.ops, Op{Kind: OpSet, Key: cloneBytes(key), Value: cloneBytes(value)})
}

// Delete buffers removal of key. Removing a missing key is a no-op at commit.
func (t *Txn) Delete(key []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = append(t.ops, Op{Kind: OpDelete, Key: cloneBytes(key)})
}

// Len returns the number of buffered operations.
func (t *Txn) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// Ops returns a copy of the buffered operations in order.
func (t *Txn) Ops() []Op {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Op, len(t.ops))
	copy(out, t.ops)
	return out
}

// Committed reports whether the transaction has been handed to Commit.
func (t *Txn) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// seal marks the transaction committed and returns its operations.
func (t *Txn) seal() ([]Op, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, ErrTxnDone
	}
	t.done = true
	return t.ops, nil
}
