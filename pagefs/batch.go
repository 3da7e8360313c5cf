package pagefs

import (
	"encoding/binary"
	"sort"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/kvsqlite/store"
	"golang.org/x/sync/errgroup"
)

// SQLite file-control opcodes which drive atomic write batches.
const (
	FcntlBeginAtomicWrite    = 31
	FcntlCommitAtomicWrite   = 32
	FcntlRollbackAtomicWrite = 33
)

// commitFetchConcurrency bounds concurrent page fetches of a batch commit.
const commitFetchConcurrency = 16

// Offsets of the database header's file change counter, and of the
// version-valid-for number which mirrors it.
const (
	changeCounterOffset   = 24
	versionValidForOffset = 92
	dbHeaderSize          = 100
)

// FileControl applies the file-control |op| to the Handle's file. Opcodes
// other than those of atomic write batches fail with NotFound.
func (fs *FS) FileControl(h *Handle, op int) error {
	switch op {
	case FcntlBeginAtomicWrite:
		return fs.BeginAtomicWrite(h)
	case FcntlCommitAtomicWrite:
		return fs.CommitAtomicWrite(h)
	case FcntlRollbackAtomicWrite:
		return fs.RollbackAtomicWrite(h)
	}
	return &Error{Code: NotFound, Op: "file control", Path: h.Path}
}

// BeginAtomicWrite opens an atomic write batch of the Handle's path.
// Subsequent writes of the path are buffered until the batch commits or
// rolls back.
func (fs *FS) BeginAtomicWrite(h *Handle) error {
	var s = fs.fileState(h.Path)

	s.mu.Lock()
	s.batchOpen = true
	s.mu.Unlock()

	fs.ok("begin_atomic_write")
	return nil
}

// RollbackAtomicWrite closes the atomic write batch of the Handle's path,
// discarding its buffered writes.
func (fs *FS) RollbackAtomicWrite(h *Handle) error {
	var s = fs.fileState(h.Path)

	s.mu.Lock()
	var n = len(s.pending)
	s.batchOpen, s.pending = false, nil
	s.mu.Unlock()

	log.WithFields(log.Fields{"path": h.Path, "writes": n}).Debug("rolled back atomic write")
	fs.ok("rollback_atomic_write")
	return nil
}

// CommitAtomicWrite closes the atomic write batch of the Handle's path, and
// applies its buffered writes to the store as a single atomic store.Batch.
// Each affected page is read once, and buffered writes are applied to it in
// the order they were made. If the Handle is of a main database and the batch
// doesn't write the first page, the batch also advances the header's change
// counter: SQLite does so itself only when it writes that page, and other
// connections rely on the counter to discard stale page caches.
func (fs *FS) CommitAtomicWrite(h *Handle) error {
	var s = fs.fileState(h.Path)

	// Hold |s| throughout, serializing batch operations of the path.
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending = s.pending
	s.batchOpen, s.pending = false, nil

	if len(pending) == 0 {
		fs.ok("commit_atomic_write")
		return nil
	}

	var batch, err = fs.buildBatch(h.Path, pending, h.MainDB)
	if err == nil {
		err = fs.store.Write(fs.ctx, batch, fs.cfg.Durability)
	}
	if err != nil {
		return fs.fail(IOWrite, "commit atomic write", h.Path, err)
	}

	batchCommitPages.Observe(float64(batch.Len()))
	log.WithFields(log.Fields{
		"path":   h.Path,
		"writes": len(pending),
		"pages":  batch.Len(),
		"bytes":  batch.Bytes(),
	}).Debug("committed atomic write")

	fs.ok("commit_atomic_write")
	return nil
}

// buildBatch groups |pending| writes by page, fetches the current content of
// each affected page, and returns a store.Batch of updated pages in
// ascending page order. If |bumpHeader|, the first page is included with an
// incremented change counter even if no write touches it.
func (fs *FS) buildBatch(path string, pending []pendingWrite, bumpHeader bool) (*store.Batch, error) {
	type pageWrite struct {
		within int
		data   []byte
	}
	var writes = make(map[int64][]pageWrite)
	var offsets []int64

	for _, w := range pending {
		for _, s := range pageSpans(w.offset, len(w.data)) {
			if _, ok := writes[s.page]; !ok {
				offsets = append(offsets, s.page)
			}
			writes[s.page] = append(writes[s.page], pageWrite{within: s.within, data: w.data[s.lo:s.hi]})
		}
	}
	if _, ok := writes[0]; ok {
		bumpHeader = false
	} else if bumpHeader {
		offsets = append(offsets, 0)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	var pages = make([][]byte, len(offsets))
	var grp, ctx = errgroup.WithContext(fs.ctx)
	grp.SetLimit(commitFetchConcurrency)

	for i, offset := range offsets {
		var i, offset = i, offset
		grp.Go(func() error {
			var page, _, err = fs.store.Get(ctx, PageKey(path, offset))
			pages[i] = page
			return err
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	var batch = new(store.Batch)
	for i, offset := range offsets {
		var page = pages[i]
		if offset == 0 && bumpHeader {
			if len(page) < dbHeaderSize {
				continue // Not yet a database. There's no counter to advance.
			}
			incrChangeCounter(page)
		}
		for _, w := range writes[offset] {
			page = applyWrite(page, w.within, w.data)
		}
		batch.Put(PageKey(path, offset), page)
	}
	return batch, nil
}

// incrChangeCounter increments the file change counter of database |header|,
// and updates its version-valid-for number to match.
func incrChangeCounter(header []byte) {
	var counter = binary.BigEndian.Uint32(header[changeCounterOffset:]) + 1
	binary.BigEndian.PutUint32(header[changeCounterOffset:], counter)
	binary.BigEndian.PutUint32(header[versionValidForOffset:], counter)
}
