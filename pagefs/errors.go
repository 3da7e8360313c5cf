package pagefs

import "fmt"

// Code categorizes a failure of an FS operation. Codes map one-to-one onto
// the SQLite result codes which the VFS binding reports to the engine.
type Code int

const (
	// CantOpen is returned by Open for an unsupported mode, or if the store
	// is unreachable.
	CantOpen Code = iota + 1
	// ReadOnly is returned by a write through a read-only Handle.
	ReadOnly
	IORead
	IOWrite
	IODelete
	IOTruncate
	IOFsync
	IOFstat
	IOAccess
	IOLock
	// Busy is returned by Lock if the configured lock timeout elapses.
	Busy
	// NotFound declines an unrecognized file-control opcode or pragma.
	NotFound
)

func (c Code) String() string {
	switch c {
	case CantOpen:
		return "cannot open"
	case ReadOnly:
		return "read only"
	case IORead:
		return "I/O read"
	case IOWrite:
		return "I/O write"
	case IODelete:
		return "I/O delete"
	case IOTruncate:
		return "I/O truncate"
	case IOFsync:
		return "I/O fsync"
	case IOFstat:
		return "I/O fstat"
	case IOAccess:
		return "I/O access"
	case IOLock:
		return "I/O lock"
	case Busy:
		return "busy"
	case NotFound:
		return "not found"
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is a failure of an FS operation upon a path.
type Error struct {
	Code Code
	Op   string
	Path string
	// Err is the underlying store error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %q: %s", e.Op, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %q: %s: %s", e.Op, e.Path, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
