package pagefs

import "sync"

// FileState tracks the atomic write batch of a path. It's shared by all
// Handles of the path.
type FileState struct {
	mu        sync.Mutex
	batchOpen bool
	pending   []pendingWrite
}

type pendingWrite struct {
	offset int64
	data   []byte
}

// buffer appends a copy of |data| at |offset| to the pending batch, and
// returns true, if a batch is open. Otherwise it returns false.
func (s *FileState) buffer(offset int64, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.batchOpen {
		return false
	}
	s.pending = append(s.pending, pendingWrite{
		offset: offset,
		data:   append([]byte(nil), data...),
	})
	return true
}

// BatchOpen returns whether an atomic write batch is open.
func (s *FileState) BatchOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchOpen
}

// Pending returns the number of buffered writes.
func (s *FileState) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// fileState returns the FileState of |path|, creating it if required.
func (fs *FS) fileState(path string) *FileState {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var s, ok = fs.files[path]
	if !ok {
		s = new(FileState)
		fs.files[path] = s
	}
	return s
}
