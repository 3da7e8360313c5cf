package mainboilerplate

import (
	"context"
	"time"

	"go.gazette.dev/kvsqlite/pagefs"
	"go.gazette.dev/kvsqlite/store"
)

// VFSConfig configures the SQLite VFS.
type VFSConfig struct {
	Name               string        `long:"name" env:"NAME" default:"kvsqlite" description:"Name under which the VFS is registered with SQLite"`
	PointInTimeReads   bool          `long:"point-in-time-reads" env:"POINT_IN_TIME_READS" description:"Permit read-only opens of databases"`
	DisableAtomicBatch bool          `long:"disable-atomic-batch" env:"DISABLE_ATOMIC_BATCH" description:"Don't advertise atomic batch writes, causing SQLite to use a rollback journal"`
	LockTimeout        time.Duration `long:"lock-timeout" env:"LOCK_TIMEOUT" default:"5s" description:"Time to wait for a conflicting lock before failing as busy. Zero waits indefinitely"`
	Durable            bool          `long:"durable" env:"DURABLE" description:"Require that each write be durable before it's acknowledged"`
}

// PagefsConfig returns the pagefs.Config of the VFSConfig.
func (cfg VFSConfig) PagefsConfig() pagefs.Config {
	var out = pagefs.Config{
		Capabilities: pagefs.Capabilities{
			AtomicBatch:      !cfg.DisableAtomicBatch,
			PointInTimeReads: cfg.PointInTimeReads,
		},
		LockTimeout: cfg.LockTimeout,
		Durability:  store.Buffered,
	}
	if cfg.Durable {
		out.Durability = store.Durable
	}
	return out
}

// MustRegister registers the VFS over store |s|, returning its FS.
func (cfg VFSConfig) MustRegister(ctx context.Context, s store.Store) *pagefs.FS {
	var fs, err = pagefs.Register(cfg.Name, func() (*pagefs.FS, error) {
		return pagefs.New(ctx, s, cfg.PagefsConfig()), nil
	})
	Must(err, "failed to register VFS", "name", cfg.Name)
	return fs
}
