// Package storetest provides a conformance suite which exercises a store.Store
// implementation against the contract the pagefs adapter relies upon.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.gazette.dev/kvsqlite/store"
)

// Run the conformance suite against |s|, which must be empty.
func Run(t *testing.T, s store.Store) {
	t.Run("point-ops", func(t *testing.T) { testPointOps(t, s) })
	t.Run("empty-values", func(t *testing.T) { testEmptyValues(t, s) })
	t.Run("batch", func(t *testing.T) { testBatch(t, s) })
	t.Run("flush", func(t *testing.T) { testFlush(t, s) })
}

func testPointOps(t *testing.T, s store.Store) {
	var ctx = context.Background()

	var _, ok, err = s.Get(ctx, "point/missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, "point/key", []byte("one"), store.Buffered))
	requireValue(t, s, "point/key", "one")

	// Overwrite, with a durable hint.
	require.NoError(t, s.Put(ctx, "point/key", []byte("two"), store.Durable))
	requireValue(t, s, "point/key", "two")

	// Returned values must not alias store state.
	value, _, err := s.Get(ctx, "point/key")
	require.NoError(t, err)
	value[0] = 'X'
	requireValue(t, s, "point/key", "two")

	require.NoError(t, s.Delete(ctx, "point/key", store.Buffered))
	requireAbsent(t, s, "point/key")

	// Deleting an absent key is not an error.
	require.NoError(t, s.Delete(ctx, "point/key", store.Buffered))
}

func testEmptyValues(t *testing.T, s store.Store) {
	var ctx = context.Background()

	require.NoError(t, s.Put(ctx, "empty/marker", nil, store.Buffered))

	var value, ok, err = s.Get(ctx, "empty/marker")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, value, 0)

	require.NoError(t, s.Delete(ctx, "empty/marker", store.Buffered))
	requireAbsent(t, s, "empty/marker")
}

func testBatch(t *testing.T, s store.Store) {
	var ctx = context.Background()

	require.NoError(t, s.Put(ctx, "batch/c", []byte("stale"), store.Buffered))

	var b store.Batch
	b.Put("batch/a", []byte("aaa"))
	b.Put("batch/b", []byte("bbb"))
	b.Delete("batch/c")
	require.NoError(t, s.Write(ctx, &b, store.Buffered))

	requireValue(t, s, "batch/a", "aaa")
	requireValue(t, s, "batch/b", "bbb")
	requireAbsent(t, s, "batch/c")

	// An empty batch is a no-op.
	require.NoError(t, s.Write(ctx, new(store.Batch), store.Durable))

	b = store.Batch{}
	b.Delete("batch/a")
	b.Delete("batch/b")
	require.NoError(t, s.Write(ctx, &b, store.Durable))
	requireAbsent(t, s, "batch/a")
	requireAbsent(t, s, "batch/b")
}

func testFlush(t *testing.T, s store.Store) {
	var ctx = context.Background()

	require.NoError(t, s.Put(ctx, "flush/key", []byte("value"), store.Buffered))
	require.NoError(t, s.Flush(ctx))
	requireValue(t, s, "flush/key", "value")
	require.NoError(t, s.Delete(ctx, "flush/key", store.Buffered))
}

func requireValue(t *testing.T, s store.Store, key, expect string) {
	var value, ok, err = s.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, key)
	require.Equal(t, expect, string(value))
}

func requireAbsent(t *testing.T, s store.Store, key string) {
	var _, ok, err = s.Get(context.Background(), key)
	require.NoError(t, err)
	require.False(t, ok, key)
}
