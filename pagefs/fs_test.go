package pagefs

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.gazette.dev/kvsqlite/store"
)

func newTestFS(t *testing.T, cfg Config) (*FS, *store.MemoryStore) {
	var ms = store.NewMemoryStore()
	return New(context.Background(), ms, cfg), ms
}

func TestSmallFileScenario(t *testing.T) {
	var fs, ms = newTestFS(t, Config{})

	var h, err = fs.Open("a.db", OpenMode{})
	require.NoError(t, err)

	ok, err := fs.Access("a.db")
	require.NoError(t, err)
	require.True(t, ok)

	n, err := fs.Write(h, 0, []byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, 10, n)

	size, err := fs.FileSize(h)
	require.NoError(t, err)
	require.Equal(t, int64(10), size)

	// Truncation to zero is equivalent to deletion.
	require.NoError(t, fs.Truncate(h, 0))
	ok, err = fs.Access("a.db")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, ms.Keys(""))

	require.NoError(t, fs.Close(h))
}

func TestSecondPageScenario(t *testing.T) {
	var fs, ms = newTestFS(t, Config{})
	var h, _ = fs.Open("a.db", OpenMode{})

	var _, err = fs.Write(h, 0, bytes.Repeat([]byte{'a'}, PageSize))
	require.NoError(t, err)
	_, err = fs.Write(h, PageSize, bytes.Repeat([]byte{'b'}, 10))
	require.NoError(t, err)

	size, err := fs.FileSize(h)
	require.NoError(t, err)
	require.Equal(t, int64(4106), size)

	require.Equal(t, []string{"a.db", "a.db:page:0", "a.db:page:4096"}, ms.Keys("a.db"))
	require.Len(t, ms.Content["a.db:page:4096"], 10)
}

func TestWriteReadRoundTrip(t *testing.T) {
	var fs, _ = newTestFS(t, Config{})
	var h, _ = fs.Open("a.db", OpenMode{})

	var _, err = fs.Write(h, 0, []byte("hello, world"))
	require.NoError(t, err)
	_, err = fs.Write(h, 7, []byte("pages"))
	require.NoError(t, err)

	var b = make([]byte, 12)
	n, err := fs.Read(h, 0, b)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, "hello, pages", string(b))

	// A read which extends beyond the file is short.
	n, err = fs.Read(h, 7, make([]byte, 100))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	// Reads beyond the end of the file return zero bytes, without error.
	n, err = fs.Read(h, 12, b)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	n, err = fs.Read(h, 3*PageSize, b)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	// Writing beyond the current end of a page zero-fills the gap.
	_, err = fs.Write(h, 20, []byte("!"))
	require.NoError(t, err)
	n, err = fs.Read(h, 10, b)
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, "es\x00\x00\x00\x00\x00\x00\x00\x00!", string(b[:n]))
}

func TestWriteAndReadSpanningPages(t *testing.T) {
	var fs, ms = newTestFS(t, Config{})
	var h, _ = fs.Open("a.db", OpenMode{})

	var data = make([]byte, 2*PageSize+100)
	for i := range data {
		data[i] = byte(i % 251)
	}
	var _, err = fs.Write(h, 0, data[:PageSize-50])
	require.NoError(t, err)
	// This write crosses two page boundaries.
	_, err = fs.Write(h, PageSize-50, data[PageSize-50:])
	require.NoError(t, err)

	require.Equal(t, []string{"a.db", "a.db:page:0", "a.db:page:4096", "a.db:page:8192"}, ms.Keys("a.db"))

	var b = make([]byte, len(data))
	n, err := fs.Read(h, 0, b)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, b)

	// A read crossing into a short final page.
	n, err = fs.Read(h, PageSize+10, make([]byte, 2*PageSize))
	require.NoError(t, err)
	require.Equal(t, PageSize-10+100, n)
}

func TestTruncate(t *testing.T) {
	var fs, ms = newTestFS(t, Config{})
	var h, _ = fs.Open("a.db", OpenMode{})

	var fill = func() {
		var _, err = fs.Write(h, 0, bytes.Repeat([]byte{'x'}, 3*PageSize+5))
		require.NoError(t, err)
	}
	var size = func() int64 {
		var s, err = fs.FileSize(h)
		require.NoError(t, err)
		return s
	}

	// Within a page.
	fill()
	require.NoError(t, fs.Truncate(h, PageSize+10))
	require.Equal(t, int64(PageSize+10), size())
	require.Equal(t, []string{"a.db", "a.db:page:0", "a.db:page:4096"}, ms.Keys("a.db"))

	// At a page boundary, the boundary page remains with zero length.
	fill()
	require.NoError(t, fs.Truncate(h, 2*PageSize))
	require.Equal(t, int64(2*PageSize), size())
	require.Equal(t, []string{"a.db", "a.db:page:0", "a.db:page:4096", "a.db:page:8192"}, ms.Keys("a.db"))
	require.Len(t, ms.Content["a.db:page:4096"], PageSize)
	require.NotNil(t, ms.Content["a.db:page:8192"])
	require.Len(t, ms.Content["a.db:page:8192"], 0)
	requireDense(t, ms, "a.db")

	// Extending truncation is a no-op.
	require.NoError(t, fs.Truncate(h, 10*PageSize))
	require.Equal(t, int64(2*PageSize), size())
	require.NoError(t, fs.Truncate(h, 2*PageSize-1))
	require.NoError(t, fs.Truncate(h, 2*PageSize))
	require.Equal(t, int64(2*PageSize-1), size())
	require.Equal(t, []string{"a.db", "a.db:page:0", "a.db:page:4096"}, ms.Keys("a.db"))

	// The marker survives non-zero truncation.
	var ok, _ = fs.Access("a.db")
	require.True(t, ok)
}

func TestDensityInvariantUnderRandomOperations(t *testing.T) {
	var fs, ms = newTestFS(t, Config{Capabilities: Capabilities{AtomicBatch: true}})
	var h, _ = fs.Open("a.db", OpenMode{})
	var rnd = rand.New(rand.NewSource(8675309))

	for i := 0; i != 500; i++ {
		var size, err = fs.FileSize(h)
		require.NoError(t, err)

		switch rnd.Intn(6) {
		case 0, 1:
			// Overwrite or append, never leaving a gap.
			var offset = rnd.Int63n(size + 1)
			_, err = fs.Write(h, offset, make([]byte, 1+rnd.Intn(2*PageSize)))
		case 2:
			require.NoError(t, fs.BeginAtomicWrite(h))
			for j := rnd.Intn(4); j >= 0; j-- {
				var offset, n = rnd.Int63n(size + 1), 1 + rnd.Intn(PageSize)
				_, err = fs.Write(h, offset, make([]byte, n))
				require.NoError(t, err)

				if end := offset + int64(n); end > size {
					size = end
				}
			}
			err = fs.CommitAtomicWrite(h)
		case 3, 4:
			err = fs.Truncate(h, rnd.Int63n(size+1))
		case 5:
			if rnd.Intn(10) == 0 {
				err = fs.Delete("a.db")
			}
		}
		require.NoError(t, err)
		requireDense(t, ms, "a.db")
	}
}

// requireDense verifies that pages of |path| form a prefix of page offsets,
// and that all but the final page are full.
func requireDense(t *testing.T, ms *store.MemoryStore, path string) {
	var offsets []int64
	for _, key := range ms.Keys(path + ":page:") {
		var o, err = strconv.ParseInt(strings.TrimPrefix(key, path+":page:"), 10, 64)
		require.NoError(t, err)
		offsets = append(offsets, o)
	}
	for i := range offsets {
		require.Contains(t, ms.Content, PageKey(path, int64(i)*PageSize), "gap before %d", offsets[i])
	}
	for i := 0; i+1 < len(offsets); i++ {
		require.Len(t, ms.Content[PageKey(path, int64(i)*PageSize)], PageSize)
	}
}

func TestAtomicWriteCommit(t *testing.T) {
	var cb = store.NewCallbackStore()
	var fs = New(context.Background(), cb, Config{Capabilities: Capabilities{AtomicBatch: true}})
	var h, _ = fs.Open("a.db", OpenMode{})

	var _, err = fs.Write(h, 0, bytes.Repeat([]byte{'o'}, PageSize+10))
	require.NoError(t, err)

	var puts int
	cb.PutFunc = func(delegate store.Store, ctx context.Context, key string, value []byte, d store.Durability) error {
		puts++
		return delegate.Put(ctx, key, value, d)
	}
	var batches []*store.Batch
	cb.WriteFunc = func(delegate store.Store, ctx context.Context, b *store.Batch, d store.Durability) error {
		batches = append(batches, b)
		return delegate.Write(ctx, b, d)
	}

	require.NoError(t, fs.FileControl(h, FcntlBeginAtomicWrite))
	require.True(t, fs.fileState("a.db").BatchOpen())

	for _, w := range []struct {
		offset int64
		data   string
	}{
		{0, "AAAA"},
		{2, "BBBB"},           // Overlaps the prior write.
		{PageSize - 2, "CCCC"}, // Spans pages.
		{2 * PageSize, "DDDD"}, // A new page.
		{1, "E"},
	} {
		n, err := fs.Write(h, w.offset, []byte(w.data))
		require.NoError(t, err)
		require.Equal(t, len(w.data), n)
	}
	require.Equal(t, 0, puts) // Buffered writes don't touch the store.
	require.Equal(t, 5, fs.fileState("a.db").Pending())

	// Reads observe prior content until the batch commits.
	var b = make([]byte, 6)
	_, err = fs.Read(h, 0, b)
	require.NoError(t, err)
	require.Equal(t, "oooooo", string(b))

	require.NoError(t, fs.FileControl(h, FcntlCommitAtomicWrite))
	require.False(t, fs.fileState("a.db").BatchOpen())
	require.Equal(t, 0, fs.fileState("a.db").Pending())
	require.Equal(t, 0, puts)

	// All affected pages were written in one batch.
	require.Len(t, batches, 1)
	require.Equal(t, 3, batches[0].Len())

	_, err = fs.Read(h, 0, b)
	require.NoError(t, err)
	require.Equal(t, "AEBBBB", string(b))

	_, err = fs.Read(h, PageSize-2, b[:4])
	require.NoError(t, err)
	require.Equal(t, "CCCC", string(b[:4]))

	size, err := fs.FileSize(h)
	require.NoError(t, err)
	require.Equal(t, int64(2*PageSize+4), size)

	// An empty batch doesn't write.
	require.NoError(t, fs.BeginAtomicWrite(h))
	require.NoError(t, fs.CommitAtomicWrite(h))
	require.Len(t, batches, 1)
}

func TestAtomicWriteRollback(t *testing.T) {
	var fs, ms = newTestFS(t, Config{Capabilities: Capabilities{AtomicBatch: true}})
	var h, _ = fs.Open("a.db", OpenMode{})

	var _, err = fs.Write(h, 0, []byte("original"))
	require.NoError(t, err)

	require.NoError(t, fs.FileControl(h, FcntlBeginAtomicWrite))
	_, err = fs.Write(h, 0, []byte("replaced"))
	require.NoError(t, err)
	_, err = fs.Write(h, PageSize, []byte("more"))
	require.NoError(t, err)
	require.NoError(t, fs.FileControl(h, FcntlRollbackAtomicWrite))

	require.Equal(t, "original", string(ms.Content["a.db:page:0"]))
	require.NotContains(t, ms.Content, "a.db:page:4096")

	// Writes after rollback are direct.
	_, err = fs.Write(h, 0, []byte("O"))
	require.NoError(t, err)
	require.Equal(t, "Original", string(ms.Content["a.db:page:0"]))
}

func TestAtomicWriteIsAllOrNothingToConcurrentReaders(t *testing.T) {
	var cb = store.NewCallbackStore()
	var fs = New(context.Background(), cb, Config{Capabilities: Capabilities{AtomicBatch: true}})
	var h, _ = fs.Open("a.db", OpenMode{})
	var reader, _ = fs.Open("a.db", OpenMode{})

	var _, err = fs.Write(h, 0, bytes.Repeat([]byte{'0'}, 3*PageSize))
	require.NoError(t, err)

	var entered, release = make(chan struct{}), make(chan struct{})
	cb.WriteFunc = func(delegate store.Store, ctx context.Context, b *store.Batch, d store.Durability) error {
		close(entered)
		<-release
		return delegate.Write(ctx, b, d)
	}

	require.NoError(t, fs.BeginAtomicWrite(h))
	for i := int64(0); i != 3; i++ {
		_, err = fs.Write(h, i*PageSize, bytes.Repeat([]byte{'1'}, PageSize))
		require.NoError(t, err)
	}
	var committed = make(chan error)
	go func() { committed <- fs.CommitAtomicWrite(h) }()

	var readAll = func() string {
		var b = make([]byte, 3*PageSize)
		var n, err = fs.Read(reader, 0, b)
		require.NoError(t, err)
		require.Equal(t, len(b), n)
		return string(b)
	}

	<-entered
	require.Equal(t, strings.Repeat("0", 3*PageSize), readAll())
	close(release)
	require.NoError(t, <-committed)
	require.Equal(t, strings.Repeat("1", 3*PageSize), readAll())
}

func TestAtomicWriteCommitFailure(t *testing.T) {
	var cb = store.NewCallbackStore()
	var fs = New(context.Background(), cb, Config{Capabilities: Capabilities{AtomicBatch: true}})
	var h, _ = fs.Open("a.db", OpenMode{})

	cb.WriteFunc = func(store.Store, context.Context, *store.Batch, store.Durability) error {
		return errors.New("unavailable")
	}
	require.NoError(t, fs.BeginAtomicWrite(h))
	var _, err = fs.Write(h, 0, []byte("lost"))
	require.NoError(t, err)

	err = fs.CommitAtomicWrite(h)
	requireCode(t, IOWrite, err)
	require.EqualError(t, err, `commit atomic write "a.db": I/O write: unavailable`)

	// The batch is closed and its writes are dropped.
	require.False(t, fs.fileState("a.db").BatchOpen())
	var n, _ = fs.Read(h, 0, make([]byte, 4))
	require.Equal(t, 0, n)
}

func TestAtomicWriteAdvancesChangeCounter(t *testing.T) {
	var fs, ms = newTestFS(t, Config{Capabilities: Capabilities{AtomicBatch: true}})
	var db, _ = fs.Open("a.db", OpenMode{MainDB: true})
	var journal, _ = fs.Open("a.db-wal", OpenMode{})

	var header = make([]byte, PageSize)
	copy(header, "SQLite format 3\x00")
	binary.BigEndian.PutUint32(header[24:], 7)
	binary.BigEndian.PutUint32(header[92:], 7)

	for _, h := range []*Handle{db, journal} {
		var _, err = fs.Write(h, 0, header)
		require.NoError(t, err)
	}
	var commit = func(h *Handle, offset int64, data string) {
		require.NoError(t, fs.BeginAtomicWrite(h))
		var _, err = fs.Write(h, offset, []byte(data))
		require.NoError(t, err)
		require.NoError(t, fs.CommitAtomicWrite(h))
	}
	var counters = func(path string) (uint32, uint32) {
		var page = ms.Content[PageKey(path, 0)]
		return binary.BigEndian.Uint32(page[24:]), binary.BigEndian.Uint32(page[92:])
	}

	// A batch of a main database which doesn't write its header advances
	// the change counter and version-valid-for number together.
	commit(db, PageSize, "leaf")
	var c, v = counters("a.db")
	require.Equal(t, uint32(8), c)
	require.Equal(t, uint32(8), v)
	require.Equal(t, "leaf", string(ms.Content["a.db:page:4096"]))

	commit(db, PageSize+4, "-two")
	c, v = counters("a.db")
	require.Equal(t, uint32(9), c)
	require.Equal(t, uint32(9), v)

	// A batch which writes the header leaves it as written.
	commit(db, 24, "\x00\x00\x00\x10")
	c, v = counters("a.db")
	require.Equal(t, uint32(16), c)
	require.Equal(t, uint32(9), v)

	// Other files are left alone.
	commit(journal, PageSize, "frame")
	c, v = counters("a.db-wal")
	require.Equal(t, uint32(7), c)
	require.Equal(t, uint32(7), v)

	// As is a database too short to have a header.
	var fresh, _ = fs.Open("b.db", OpenMode{MainDB: true})
	var _, err = fs.Write(fresh, 0, []byte("short"))
	require.NoError(t, err)
	commit(fresh, PageSize, "x")
	require.Equal(t, "short", string(ms.Content["b.db:page:0"]))
	requireDense(t, ms, "a.db")
}

func TestFileControlUnknownOpcode(t *testing.T) {
	var fs, _ = newTestFS(t, Config{})
	var h, _ = fs.Open("a.db", OpenMode{})
	requireCode(t, NotFound, fs.FileControl(h, 14))
}

func TestOpenModes(t *testing.T) {
	var fs, ms = newTestFS(t, Config{})

	// Read-only requires point-in-time reads.
	var _, err = fs.Open("a.db", OpenMode{ReadOnly: true})
	requireCode(t, CantOpen, err)
	require.Empty(t, ms.Keys(""))

	fs, ms = newTestFS(t, Config{Capabilities: Capabilities{PointInTimeReads: true}})
	h, err := fs.Open("a.db", OpenMode{ReadOnly: true})
	require.NoError(t, err)
	_, err = fs.Write(h, 0, []byte("x"))
	requireCode(t, ReadOnly, err)
	requireCode(t, ReadOnly, fs.Truncate(h, 0))

	// Handles have distinct IDs.
	h2, err := fs.Open("a.db", OpenMode{})
	require.NoError(t, err)
	require.NotEqual(t, h.ID, h2.ID)

	// Anonymous files are assigned a unique path and deleted on close.
	tmp, err := fs.Open("", OpenMode{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(tmp.Path, "temp:"))
	require.True(t, tmp.DeleteOnClose)
	_, err = fs.Write(tmp, 0, []byte("scratch"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(tmp))
	require.Empty(t, ms.Keys("temp:"))

	// As are files opened delete-on-close.
	doc, err := fs.Open("a.db-journal", OpenMode{DeleteOnClose: true})
	require.NoError(t, err)
	_, err = fs.Write(doc, 0, []byte("journal"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(doc))
	require.Empty(t, ms.Keys("a.db-journal"))
}

func TestDeleteOnCloseAwaitsLastHandle(t *testing.T) {
	var fs, ms = newTestFS(t, Config{})
	var h1, _ = fs.Open("a.db-journal", OpenMode{DeleteOnClose: true})
	var h2, _ = fs.Open("a.db-journal", OpenMode{})

	var _, err = fs.Write(h1, 0, []byte("journal"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(h1))

	// The surviving Handle still observes the file.
	var b = make([]byte, 7)
	n, err := fs.Read(h2, 0, b)
	require.NoError(t, err)
	require.Equal(t, "journal", string(b[:n]))
	ok, err := fs.Access("a.db-journal")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, fs.Close(h2))
	ok, err = fs.Access("a.db-journal")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, ms.Keys("a.db-journal"))
	require.Empty(t, fs.deleteOnClose)

	// A later Open of the path doesn't inherit the deletion.
	h3, err := fs.Open("a.db-journal", OpenMode{})
	require.NoError(t, err)
	require.NoError(t, fs.Close(h3))
	ok, _ = fs.Access("a.db-journal")
	require.True(t, ok)
}

func TestCloseAbandonsBatchOfLastHandle(t *testing.T) {
	var fs, ms = newTestFS(t, Config{Capabilities: Capabilities{AtomicBatch: true}})
	var h1, _ = fs.Open("a.db", OpenMode{})
	var h2, _ = fs.Open("a.db", OpenMode{})

	require.NoError(t, fs.BeginAtomicWrite(h1))
	var _, err = fs.Write(h1, 0, []byte("pending"))
	require.NoError(t, err)

	// Another Handle remains open: the batch is retained.
	require.NoError(t, fs.Close(h2))
	require.True(t, fs.fileState("a.db").BatchOpen())

	require.NoError(t, fs.Close(h1))
	require.Empty(t, fs.files)
	require.Empty(t, fs.open)
	require.NotContains(t, ms.Content, "a.db:page:0")
}

func TestStoreFailuresAreTyped(t *testing.T) {
	var cb = store.NewCallbackStore()
	var fs = New(context.Background(), cb, Config{})
	var h, _ = fs.Open("a.db", OpenMode{})
	var _, err = fs.Write(h, 0, []byte("data"))
	require.NoError(t, err)

	var boom = errors.New("boom")
	cb.GetFunc = func(store.Store, context.Context, string) ([]byte, bool, error) { return nil, false, boom }
	cb.PutFunc = func(store.Store, context.Context, string, []byte, store.Durability) error { return boom }
	cb.FlushFunc = func(store.Store, context.Context) error { return boom }

	_, err = fs.Read(h, 0, make([]byte, 4))
	requireCode(t, IORead, err)
	require.True(t, errors.Is(err, boom))

	_, err = fs.Write(h, 0, []byte("x"))
	requireCode(t, IOWrite, err)
	_, err = fs.FileSize(h)
	requireCode(t, IOFstat, err)
	requireCode(t, IOTruncate, fs.Truncate(h, 2))
	requireCode(t, IODelete, fs.Delete("a.db"))
	_, err = fs.Access("a.db")
	requireCode(t, IOAccess, err)
	requireCode(t, IOFsync, fs.Sync(h))
	_, err = fs.Open("b.db", OpenMode{})
	requireCode(t, CantOpen, err)

	cb.GetFunc, cb.FlushFunc = nil, nil
	require.NoError(t, fs.Sync(h))
}

func TestLockTimeoutIsBusy(t *testing.T) {
	var fs, _ = newTestFS(t, Config{LockTimeout: 20 * time.Millisecond})
	var h1, _ = fs.Open("a.db", OpenMode{})
	var h2, _ = fs.Open("a.db", OpenMode{})

	require.NoError(t, fs.Lock(h1, Shared))
	require.NoError(t, fs.Lock(h1, Reserved))
	require.NoError(t, fs.Lock(h2, Shared))
	require.True(t, fs.CheckReservedLock(h2))

	requireCode(t, Busy, fs.Lock(h2, Reserved))
	require.Equal(t, Shared, fs.LockState(h2))

	// Closing releases the locks of a Handle.
	require.NoError(t, fs.Close(h1))
	require.False(t, fs.CheckReservedLock(h2))
	require.NoError(t, fs.Lock(h2, Exclusive))
	require.NoError(t, fs.Unlock(h2, Unlocked))
	require.Equal(t, Unlocked, fs.LockState(h2))
}

func TestPragmas(t *testing.T) {
	var fs, _ = newTestFS(t, Config{})
	var h, _ = fs.Open("a.db", OpenMode{})
	var _, err = fs.Write(h, 0, make([]byte, 123))
	require.NoError(t, err)
	require.NoError(t, fs.Lock(h, Shared))

	for name, expect := range map[string]string{
		ProbePragma:     ProbeValue,
		LockLevelPragma: "shared",
		FileSizePragma:  "123",
	} {
		var out, err = fs.Pragma(h, name, "")
		require.NoError(t, err)
		require.Equal(t, expect, out)
	}
	_, err = fs.Pragma(h, "journal_mode", "wal")
	requireCode(t, NotFound, err)
}

func TestPreload(t *testing.T) {
	var ctx = context.Background()
	var gets atomic.Int64
	var cb = store.NewCallbackStore()
	cb.GetFunc = func(delegate store.Store, ctx context.Context, key string) ([]byte, bool, error) {
		gets.Add(1)
		return delegate.Get(ctx, key)
	}
	var cache = store.NewCacheStore(cb, 64)
	var fs = New(ctx, cache, Config{})
	var h, _ = fs.Open("a.db", OpenMode{})

	var _, err = fs.Write(h, 0, make([]byte, 5*PageSize+1))
	require.NoError(t, err)
	cache.Close() // Purges cached pages.

	n, err := fs.Preload(ctx, "a.db", 1, 0)
	require.NoError(t, err)
	require.Equal(t, int64(5*PageSize+1), n)

	// Pages are now served from cache.
	gets.Store(0)
	size, err := fs.FileSize(h)
	require.NoError(t, err)
	require.Equal(t, int64(5*PageSize+1), size)
	require.Equal(t, int64(0), gets.Load())

	// |maxBytes| bounds the preload, rounded up to whole windows.
	n, err = fs.Preload(ctx, "a.db", 2, PageSize)
	require.NoError(t, err)
	require.Equal(t, int64(2*PageSize), n)
}

func requireCode(t *testing.T, code Code, err error) {
	t.Helper()

	var fsErr *Error
	require.True(t, errors.As(err, &fsErr), "expected *Error, got %v", err)
	require.Equal(t, code, fsErr.Code, fsErr.Error())
}
