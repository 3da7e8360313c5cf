package store

import (
	"context"
	"time"
)

// MeteredStore wraps a Store implementation with instrumentation.
type MeteredStore struct {
	Store Store
}

// NewMeteredStore returns a MeteredStore wrapping |store|.
func NewMeteredStore(store Store) *MeteredStore {
	return &MeteredStore{Store: store}
}

// Provider returns the Provider of the wrapped Store.
func (s *MeteredStore) Provider() string { return s.Store.Provider() }

// Get returns the value of |key|, and whether it exists.
func (s *MeteredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var started = time.Now()
	var value, ok, err = s.Store.Get(ctx, key)

	s.observe("get", started, err)
	return value, ok, err
}

// Put writes |value| to |key|.
func (s *MeteredStore) Put(ctx context.Context, key string, value []byte, d Durability) error {
	var started = time.Now()
	var err = s.Store.Put(ctx, key, value, d)

	s.observe("put", started, err)
	if err == nil {
		storeWriteBytesTotal.WithLabelValues(s.Provider()).Add(float64(len(value)))
	}
	return err
}

// Delete removes |key|.
func (s *MeteredStore) Delete(ctx context.Context, key string, d Durability) error {
	var started = time.Now()
	var err = s.Store.Delete(ctx, key, d)

	s.observe("delete", started, err)
	return err
}

// Write atomically applies the Batch.
func (s *MeteredStore) Write(ctx context.Context, b *Batch, d Durability) error {
	var started = time.Now()
	var err = s.Store.Write(ctx, b, d)

	s.observe("write", started, err)
	if err == nil {
		storeBatchOps.WithLabelValues(s.Provider()).Observe(float64(b.Len()))
		storeWriteBytesTotal.WithLabelValues(s.Provider()).Add(float64(b.Bytes()))
	}
	return err
}

// Flush blocks until prior writes are durable.
func (s *MeteredStore) Flush(ctx context.Context) error {
	var started = time.Now()
	var err = s.Store.Flush(ctx)

	s.observe("flush", started, err)
	return err
}

// Close the wrapped Store.
func (s *MeteredStore) Close() error {
	activeStores.Dec()
	return s.Store.Close()
}

func (s *MeteredStore) observe(op string, started time.Time, err error) {
	var status = "success"
	if err != nil {
		status = "error"
	}
	storeOperationTotal.WithLabelValues(s.Provider(), op, status).Inc()
	storeOperationDuration.WithLabelValues(s.Provider(), op, status).Observe(time.Since(started).Seconds())
}
