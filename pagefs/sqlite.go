package pagefs

import (
	"errors"
	"io"

	"github.com/ncruces/go-sqlite3"
	"github.com/ncruces/go-sqlite3/vfs"
)

// VFS adapts an FS to the SQLite VFS interface.
type VFS struct {
	FS *FS
}

var (
	_ vfs.VFS                  = (*VFS)(nil)
	_ vfs.File                 = (*file)(nil)
	_ vfs.FileBatchAtomicWrite = (*file)(nil)
	_ vfs.FilePragma           = (*file)(nil)
	_ vfs.FileLockState        = (*file)(nil)
)

func (v *VFS) Open(name string, flags vfs.OpenFlag) (vfs.File, vfs.OpenFlag, error) {
	var h, err = v.FS.Open(name, OpenMode{
		ReadOnly:      flags&vfs.OPEN_READONLY != 0,
		DeleteOnClose: flags&vfs.OPEN_DELETEONCLOSE != 0,
		MainDB:        flags&vfs.OPEN_MAIN_DB != 0,
	})
	if err != nil {
		return nil, flags, resultCode(err)
	}
	return &file{fs: v.FS, h: h}, flags, nil
}

func (v *VFS) Delete(name string, _ bool) error {
	return resultCode(v.FS.Delete(name))
}

func (v *VFS) Access(name string, _ vfs.AccessFlag) (bool, error) {
	var ok, err = v.FS.Access(name)
	return ok, resultCode(err)
}

// FullPathname returns |name| unchanged: paths are store keys rather than
// names of a hierarchical filesystem.
func (v *VFS) FullPathname(name string) (string, error) { return name, nil }

// file adapts a Handle to the SQLite VFS file interface.
type file struct {
	fs *FS
	h  *Handle
}

func (f *file) Close() error { return resultCode(f.fs.Close(f.h)) }

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	var n, err = f.fs.Read(f.h, off, p)
	if err != nil {
		return n, resultCode(err)
	} else if n < len(p) {
		return n, io.EOF // SQLite zero-fills the remainder.
	}
	return n, nil
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	var n, err = f.fs.Write(f.h, off, p)
	return n, resultCode(err)
}

func (f *file) Truncate(size int64) error { return resultCode(f.fs.Truncate(f.h, size)) }

func (f *file) Sync(vfs.SyncFlag) error { return resultCode(f.fs.Sync(f.h)) }

func (f *file) Size() (int64, error) {
	var size, err = f.fs.FileSize(f.h)
	return size, resultCode(err)
}

func (f *file) Lock(level vfs.LockLevel) error {
	return resultCode(f.fs.Lock(f.h, LockLevel(level)))
}

func (f *file) Unlock(level vfs.LockLevel) error {
	return resultCode(f.fs.Unlock(f.h, LockLevel(level)))
}

func (f *file) CheckReservedLock() (bool, error) { return f.fs.CheckReservedLock(f.h), nil }

func (f *file) LockState() vfs.LockLevel { return vfs.LockLevel(f.fs.LockState(f.h)) }

func (f *file) SectorSize() int { return f.fs.SectorSize() }

func (f *file) DeviceCharacteristics() vfs.DeviceCharacteristic {
	var out = vfs.IOCAP_SAFE_APPEND | vfs.IOCAP_SEQUENTIAL | vfs.IOCAP_POWERSAFE_OVERWRITE
	if f.fs.cfg.AtomicBatch {
		out |= vfs.IOCAP_BATCH_ATOMIC
	}
	return out
}

func (f *file) BeginAtomicWrite() error    { return resultCode(f.fs.BeginAtomicWrite(f.h)) }
func (f *file) CommitAtomicWrite() error   { return resultCode(f.fs.CommitAtomicWrite(f.h)) }
func (f *file) RollbackAtomicWrite() error { return resultCode(f.fs.RollbackAtomicWrite(f.h)) }

func (f *file) Pragma(name, value string) (string, error) {
	var out, err = f.fs.Pragma(f.h, name, value)
	return out, resultCode(err)
}

// resultCode maps an FS error to the SQLite result code of its Code.
func resultCode(err error) error {
	if err == nil {
		return nil
	}
	var fsErr *Error
	if !errors.As(err, &fsErr) {
		return sqlite3.IOERR
	}
	switch fsErr.Code {
	case CantOpen:
		return sqlite3.CANTOPEN
	case ReadOnly:
		return sqlite3.READONLY
	case IORead:
		return sqlite3.IOERR_READ
	case IOWrite:
		return sqlite3.IOERR_WRITE
	case IODelete:
		return sqlite3.IOERR_DELETE
	case IOTruncate:
		return sqlite3.IOERR_TRUNCATE
	case IOFsync:
		return sqlite3.IOERR_FSYNC
	case IOFstat:
		return sqlite3.IOERR_FSTAT
	case IOAccess:
		return sqlite3.IOERR_ACCESS
	case IOLock:
		return sqlite3.IOERR_LOCK
	case Busy:
		return sqlite3.BUSY
	case NotFound:
		return sqlite3.NOTFOUND
	}
	return sqlite3.IOERR
}
