// Package store provides an abstraction over ordered key/value stores which
// hold the pages of SQLite database files.
package store

import (
	"context"
	"net/url"
)

// Store is a key/value store offering point reads and writes, and an atomic
// multi-key write batch. Keys are opaque strings and values are opaque byte
// strings. A present key may have a zero-length value, which is distinct from
// an absent key.
type Store interface {
	// Provider returns the name of the storage backend (eg, "memory", "rocksdb", "etcd").
	Provider() string

	// Get returns the value of |key|, and whether it exists.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put writes |value| to |key|.
	Put(ctx context.Context, key string, value []byte, d Durability) error

	// Delete removes |key|. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string, d Durability) error

	// Write atomically applies all operations of the Batch: either every
	// operation becomes visible, or none do.
	Write(ctx context.Context, b *Batch, d Durability) error

	// Flush blocks until all prior writes are durable.
	Flush(ctx context.Context) error

	// Close releases resources of the Store.
	Close() error
}

// Durability hints whether a write must be durable before it's acknowledged.
type Durability int

const (
	// Buffered writes may be acknowledged before they're durable.
	// Durability is then established by a later Flush.
	Buffered Durability = iota
	// Durable writes are acknowledged only once durable.
	Durable
)

func (d Durability) String() string {
	if d == Durable {
		return "durable"
	}
	return "buffered"
}

// Op is a single operation of a Batch.
type Op struct {
	Key    string
	Value  []byte
	Delete bool
}

// Batch is an ordered set of Ops which are applied atomically.
type Batch struct {
	Ops []Op
}

// Put adds a put of |value| to |key|.
func (b *Batch) Put(key string, value []byte) {
	b.Ops = append(b.Ops, Op{Key: key, Value: value})
}

// Delete adds a removal of |key|.
func (b *Batch) Delete(key string) {
	b.Ops = append(b.Ops, Op{Key: key, Delete: true})
}

// Len returns the number of Ops in the Batch.
func (b *Batch) Len() int { return len(b.Ops) }

// Bytes returns the total number of value bytes put by the Batch.
func (b *Batch) Bytes() (n int) {
	for _, op := range b.Ops {
		n += len(op.Value)
	}
	return
}

// Constructor is a function that creates a Store instance from a URL.
// Each storage backend provides its own constructor implementation.
type Constructor func(*url.URL) (Store, error)
