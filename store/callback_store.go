package store

import "context"

// CallbackStore implements Store for testing with customizable behavior.
// Each callback receives the Delegate, which it may invoke to fall through
// to a default implementation. Where a callback is nil, the Delegate is
// called directly.
type CallbackStore struct {
	Delegate Store

	GetFunc    func(delegate Store, ctx context.Context, key string) ([]byte, bool, error)
	PutFunc    func(delegate Store, ctx context.Context, key string, value []byte, d Durability) error
	DeleteFunc func(delegate Store, ctx context.Context, key string, d Durability) error
	WriteFunc  func(delegate Store, ctx context.Context, b *Batch, d Durability) error
	FlushFunc  func(delegate Store, ctx context.Context) error
}

// NewCallbackStore returns a CallbackStore which delegates to a new MemoryStore.
func NewCallbackStore() *CallbackStore {
	return &CallbackStore{Delegate: NewMemoryStore()}
}

func (c *CallbackStore) Provider() string { return "callback" }

func (c *CallbackStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.GetFunc != nil {
		return c.GetFunc(c.Delegate, ctx, key)
	}
	return c.Delegate.Get(ctx, key)
}

func (c *CallbackStore) Put(ctx context.Context, key string, value []byte, d Durability) error {
	if c.PutFunc != nil {
		return c.PutFunc(c.Delegate, ctx, key, value, d)
	}
	return c.Delegate.Put(ctx, key, value, d)
}

func (c *CallbackStore) Delete(ctx context.Context, key string, d Durability) error {
	if c.DeleteFunc != nil {
		return c.DeleteFunc(c.Delegate, ctx, key, d)
	}
	return c.Delegate.Delete(ctx, key, d)
}

func (c *CallbackStore) Write(ctx context.Context, b *Batch, d Durability) error {
	if c.WriteFunc != nil {
		return c.WriteFunc(c.Delegate, ctx, b, d)
	}
	return c.Delegate.Write(ctx, b, d)
}

func (c *CallbackStore) Flush(ctx context.Context) error {
	if c.FlushFunc != nil {
		return c.FlushFunc(c.Delegate, ctx)
	}
	return c.Delegate.Flush(ctx)
}

func (c *CallbackStore) Close() error { return c.Delegate.Close() }
