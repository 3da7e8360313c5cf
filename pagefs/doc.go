// Package pagefs implements a SQLite VFS which stores files as pages of an
// ordered key/value store.Store.
//
// A file of path P is represented by a zero-length existence marker at key P,
// and by pages of up to PageSize bytes at keys "P:page:N" for N a multiple of
// PageSize. Pages are dense: if the page at N is absent, no page after N
// exists, and the file size is the end offset of its last page.
//
// Handles of a file coordinate through a LockManager which emulates SQLite's
// five-level file locking protocol within the process. Where the FS is
// configured with the AtomicBatch capability, SQLite brackets the page writes
// of each transaction with atomic write file-controls, and the FS buffers and
// commits them to the store as a single atomic store.Batch.
//
// Register an FS under a VFS name, and then open databases with that name:
//
//	var fs, err = pagefs.Register("kvsqlite", func() (*pagefs.FS, error) {
//		return pagefs.New(ctx, store.NewMemoryStore(), cfg), nil
//	})
//	db, err := sql.Open("sqlite3", "file:main.db?vfs=kvsqlite")
package pagefs
