package pagefs

import (
	"sync"

	"github.com/ncruces/go-sqlite3/vfs"
	log "github.com/sirupsen/logrus"
)

var (
	registered   = make(map[string]*FS)
	registeredMu sync.Mutex
)

// Register returns the FS registered with SQLite under VFS |name|. The first
// call for a |name| invokes |build| and registers its FS, which is then
// returned by every later call for the process lifetime.
func Register(name string, build func() (*FS, error)) (*FS, error) {
	registeredMu.Lock()
	defer registeredMu.Unlock()

	if fs, ok := registered[name]; ok {
		return fs, nil
	}
	var fs, err = build()
	if err != nil {
		return nil, err
	}
	vfs.Register(name, &VFS{FS: fs})
	registered[name] = fs

	log.WithFields(log.Fields{
		"name":        name,
		"atomicBatch": fs.cfg.AtomicBatch,
		"lockTimeout": fs.cfg.LockTimeout,
	}).Info("registered SQLite VFS")

	return fs, nil
}
