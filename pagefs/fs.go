package pagefs

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/kvsqlite/store"
)

// ProbeValue is the result of the ProbePragma.
const ProbeValue = "kvsqlite"

// Pragmas handled by FS.Pragma.
const (
	// ProbePragma returns ProbeValue, and verifies the VFS is in use.
	ProbePragma = "kvsqlite_probe"
	// LockLevelPragma returns the strongest lock level held upon the file.
	LockLevelPragma = "kvsqlite_lock_level"
	// FileSizePragma returns the size of the file.
	FileSizePragma = "kvsqlite_file_size"
)

// Capabilities of a deployment of the FS.
type Capabilities struct {
	// AtomicBatch advertises atomic batch writes to SQLite, which then
	// brackets the page writes of each transaction with FileControl opcodes
	// rather than using a rollback journal.
	AtomicBatch bool
	// PointInTimeReads permits read-only Opens.
	PointInTimeReads bool
}

// Config of an FS.
type Config struct {
	Capabilities
	// LockTimeout bounds the time Lock will block before failing with Busy.
	// Zero blocks indefinitely.
	LockTimeout time.Duration
	// Durability of page and marker writes.
	Durability store.Durability
}

// Handle is an open file of an FS.
type Handle struct {
	Path          string
	ID            uint64
	ReadOnly      bool
	DeleteOnClose bool
	// MainDB is true if the Handle is of a main database file, rather than
	// of a journal or temporary file.
	MainDB bool
}

// OpenMode of a Handle.
type OpenMode struct {
	ReadOnly bool
	// DeleteOnClose removes the file once its last open Handle closes.
	DeleteOnClose bool
	MainDB        bool
}

// FS maps the files of SQLite databases onto pages of a store.Store.
// It's safe for concurrent use by many connections and Handles.
type FS struct {
	ctx   context.Context
	store store.Store
	cfg   Config
	locks *LockManager

	nextID atomic.Uint64

	mu    sync.Mutex
	files map[string]*FileState
	open  map[string]int // Number of open Handles of each path.
	// Paths to delete when their last open Handle closes.
	deleteOnClose map[string]bool
}

// New returns an FS of |s|. Store operations are issued with |ctx|.
func New(ctx context.Context, s store.Store, cfg Config) *FS {
	return &FS{
		ctx:   ctx,
		store: s,
		cfg:   cfg,
		locks: NewLockManager(),
		files:         make(map[string]*FileState),
		open:          make(map[string]int),
		deleteOnClose: make(map[string]bool),
	}
}

// Config returns the Config of the FS.
func (fs *FS) Config() Config { return fs.cfg }

// Locks returns the LockManager of the FS.
func (fs *FS) Locks() *LockManager { return fs.locks }

// Open a Handle of |path|. Unless |path| is empty, its existence marker is
// written (if it doesn't already exist). An empty |path| opens an anonymous
// file which is deleted on close.
func (fs *FS) Open(path string, mode OpenMode) (*Handle, error) {
	if mode.ReadOnly && !fs.cfg.PointInTimeReads {
		return nil, fs.fail(CantOpen, "open", path, nil)
	}

	if path == "" {
		path = "temp:" + uuid.New().String()
		mode.DeleteOnClose = true
	} else if err := fs.store.Put(fs.ctx, path, nil, fs.cfg.Durability); err != nil {
		return nil, fs.fail(CantOpen, "open", path, err)
	}

	var h = &Handle{
		Path:          path,
		ID:            fs.nextID.Add(1),
		ReadOnly:      mode.ReadOnly,
		DeleteOnClose: mode.DeleteOnClose,
		MainDB:        mode.MainDB,
	}
	fs.mu.Lock()
	fs.open[path]++
	if mode.DeleteOnClose {
		fs.deleteOnClose[path] = true
	}
	fs.mu.Unlock()

	openHandles.Inc()
	fs.ok("open")

	log.WithFields(log.Fields{
		"path":     path,
		"id":       h.ID,
		"readOnly": h.ReadOnly,
	}).Debug("opened file")

	return h, nil
}

// Close the Handle, releasing its locks. Once no other Handle of the path
// remains open, a pending atomic write batch of the path is abandoned and,
// if any Handle was opened with DeleteOnClose, the file is deleted.
func (fs *FS) Close(h *Handle) error {
	fs.locks.RemoveHandle(h.Path, h.ID)

	var remove bool
	fs.mu.Lock()
	if fs.open[h.Path]--; fs.open[h.Path] <= 0 {
		remove = fs.deleteOnClose[h.Path]

		delete(fs.open, h.Path)
		delete(fs.files, h.Path)
		delete(fs.deleteOnClose, h.Path)
	}
	fs.mu.Unlock()

	openHandles.Dec()

	if remove {
		return fs.Delete(h.Path)
	}
	fs.ok("close")
	return nil
}

// Delete the pages and existence marker of |path|. Pages are removed in
// ascending order, so that a partial failure leaves a dense prefix.
func (fs *FS) Delete(path string) error {
	if err := fs.deleteFile(path); err != nil {
		return fs.fail(IODelete, "delete", path, err)
	}
	fs.ok("delete")
	return nil
}

func (fs *FS) deleteFile(path string) error {
	if _, err := fs.deletePagesFrom(path, 0); err != nil {
		return err
	}
	return fs.store.Delete(fs.ctx, path, fs.cfg.Durability)
}

// deletePagesFrom deletes pages of |path| at and after |offset| until the
// first absent page, and returns the number deleted.
func (fs *FS) deletePagesFrom(path string, offset int64) (int, error) {
	var n int
	for ; ; offset += PageSize {
		var key = PageKey(path, offset)

		if _, ok, err := fs.store.Get(fs.ctx, key); err != nil {
			return n, err
		} else if !ok {
			return n, nil
		} else if err = fs.store.Delete(fs.ctx, key, fs.cfg.Durability); err != nil {
			return n, err
		}
		n++
	}
}

// Access returns whether |path| exists.
func (fs *FS) Access(path string) (bool, error) {
	var _, ok, err = fs.store.Get(fs.ctx, path)
	if err != nil {
		return false, fs.fail(IOAccess, "access", path, err)
	}
	fs.ok("access")
	return ok, nil
}

// FileSize returns the size of the Handle's file, which is the end offset of
// its last page.
func (fs *FS) FileSize(h *Handle) (int64, error) {
	var size, err = fs.fileSize(h.Path)
	if err != nil {
		return 0, fs.fail(IOFstat, "size", h.Path, err)
	}
	fs.ok("size")
	return size, nil
}

func (fs *FS) fileSize(path string) (int64, error) {
	var size int64
	for offset := int64(0); ; offset += PageSize {
		if page, ok, err := fs.store.Get(fs.ctx, PageKey(path, offset)); err != nil {
			return 0, err
		} else if !ok {
			return size, nil
		} else {
			size = offset + int64(len(page))
		}
	}
}

// Truncate the Handle's file to |size|. Truncation to zero deletes the file.
// Truncation never extends a file. The page containing |size| is retained,
// and is left zero-length if |size| is page-aligned.
func (fs *FS) Truncate(h *Handle, size int64) error {
	if h.ReadOnly {
		return fs.fail(ReadOnly, "truncate", h.Path, nil)
	}
	var err error
	if size <= 0 {
		err = fs.deleteFile(h.Path)
	} else {
		err = fs.truncate(h.Path, size)
	}
	if err != nil {
		return fs.fail(IOTruncate, "truncate", h.Path, err)
	}
	fs.ok("truncate")
	return nil
}

func (fs *FS) truncate(path string, size int64) error {
	var offset, within = PageOffset(size), WithinPage(size)
	var key = PageKey(path, offset)

	if page, ok, err := fs.store.Get(fs.ctx, key); err != nil {
		return err
	} else if !ok || int64(len(page)) <= within {
		// The file doesn't extend beyond |size|.
		return nil
	} else if err = fs.store.Put(fs.ctx, key, page[:within], fs.cfg.Durability); err != nil {
		return err
	}
	var _, err = fs.deletePagesFrom(path, offset+PageSize)
	return err
}

// Write |b| at |offset| of the Handle's file. If an atomic write batch is
// open for the path, the write is buffered until the batch commits.
// Otherwise each page spanned by the write is read, modified, and written
// back to the store.
func (fs *FS) Write(h *Handle, offset int64, b []byte) (int, error) {
	if h.ReadOnly {
		return 0, fs.fail(ReadOnly, "write", h.Path, nil)
	}
	if fs.fileState(h.Path).buffer(offset, b) {
		fs.ok("write_buffered")
		return len(b), nil
	}

	for _, s := range pageSpans(offset, len(b)) {
		var key = PageKey(h.Path, s.page)

		var page, _, err = fs.store.Get(fs.ctx, key)
		if err == nil {
			page = applyWrite(page, s.within, b[s.lo:s.hi])
			err = fs.store.Put(fs.ctx, key, page, fs.cfg.Durability)
		}
		if err != nil {
			return 0, fs.fail(IOWrite, "write", h.Path, err)
		}
	}
	fs.ok("write")
	return len(b), nil
}

// applyWrite copies |data| into |page| at |within|, zero-extending the page
// as required, and returns the updated page.
func applyWrite(page []byte, within int, data []byte) []byte {
	if end := within + len(data); end > len(page) {
		page = append(page, make([]byte, end-len(page))...)
	}
	copy(page[within:], data)
	return page
}

// Read into |b| from |offset| of the Handle's file, returning the number of
// bytes read. A read beyond the end of the file is short, and is not an error.
func (fs *FS) Read(h *Handle, offset int64, b []byte) (int, error) {
	var n int
	for _, s := range pageSpans(offset, len(b)) {
		var page, ok, err = fs.store.Get(fs.ctx, PageKey(h.Path, s.page))
		if err != nil {
			return 0, fs.fail(IORead, "read", h.Path, err)
		} else if !ok || s.within >= len(page) {
			break
		}
		var c = copy(b[s.lo:s.hi], page[s.within:])
		n += c

		if c != s.hi-s.lo {
			break // Short page: the read stops at end-of-file.
		}
	}
	fs.ok("read")
	return n, nil
}

// Sync blocks until prior writes of the store are durable.
func (fs *FS) Sync(h *Handle) error {
	if err := fs.store.Flush(fs.ctx); err != nil {
		return fs.fail(IOFsync, "sync", h.Path, err)
	}
	fs.ok("sync")
	return nil
}

// SectorSize is the I/O alignment unit of the FS, which is PageSize.
func (fs *FS) SectorSize() int { return PageSize }

// Lock the Handle's file to |level|, blocking until other Handles permit.
func (fs *FS) Lock(h *Handle, level LockLevel) error {
	var ctx, cancel = fs.ctx, context.CancelFunc(func() {})
	if fs.cfg.LockTimeout > 0 {
		ctx, cancel = context.WithTimeout(fs.ctx, fs.cfg.LockTimeout)
	}
	defer cancel()

	if err := fs.locks.Lock(ctx, h.Path, h.ID, level); err == context.DeadlineExceeded {
		return fs.fail(Busy, "lock", h.Path, err)
	} else if err != nil {
		return fs.fail(IOLock, "lock", h.Path, err)
	}
	return nil
}

// Unlock the Handle's file to |level|.
func (fs *FS) Unlock(h *Handle, level LockLevel) error {
	fs.locks.Unlock(h.Path, h.ID, level)
	return nil
}

// CheckReservedLock returns whether any Handle of the file holds Reserved or stronger.
func (fs *FS) CheckReservedLock(h *Handle) bool {
	return fs.locks.CurrentMaxLevel(h.Path) >= Reserved
}

// LockState returns the level held by the Handle.
func (fs *FS) LockState(h *Handle) LockLevel {
	return fs.locks.LevelOf(h.Path, h.ID)
}

// Pragma evaluates an FS-specific pragma, returning a NotFound Error if
// |name| isn't recognized.
func (fs *FS) Pragma(h *Handle, name, _ string) (string, error) {
	switch name {
	case ProbePragma:
		return ProbeValue, nil
	case LockLevelPragma:
		return fs.locks.CurrentMaxLevel(h.Path).String(), nil
	case FileSizePragma:
		if size, err := fs.FileSize(h); err != nil {
			return "", err
		} else {
			return strconv.FormatInt(size, 10), nil
		}
	}
	return "", &Error{Code: NotFound, Op: "pragma " + name, Path: h.Path}
}

func (fs *FS) ok(op string) {
	operationsTotal.WithLabelValues(op, "ok").Inc()
}

func (fs *FS) fail(code Code, op, path string, err error) *Error {
	operationsTotal.WithLabelValues(op, "error").Inc()

	log.WithFields(log.Fields{
		"op":   op,
		"path": path,
		"code": code,
		"err":  err,
	}).Error("file operation failed")

	return &Error{Code: code, Op: op, Path: path, Err: err}
}
