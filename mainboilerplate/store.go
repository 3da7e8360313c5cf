package mainboilerplate

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/kvsqlite/pagefs"
	"go.gazette.dev/kvsqlite/store"
	"go.gazette.dev/kvsqlite/store/etcd"
	"go.gazette.dev/kvsqlite/store/rocksdb"
	"go.gazette.dev/kvsqlite/store/sqlkv"
)

// StoreConfig configures the page store of a VFS.
type StoreConfig struct {
	URL            string        `long:"url" env:"URL" default:"memory://" description:"URL of the page store (memory://, rocksdb:///dir, etcd://host:port/prefix, sqlite:///file.db, postgres://...)"`
	ConnectTimeout time.Duration `long:"connect-timeout" env:"CONNECT_TIMEOUT" default:"10s" description:"Timeout for establishing the store connection"`

	Cache struct {
		MaxBytes           string `long:"max-bytes" env:"MAX_BYTES" default:"0" description:"Size of the page read cache, such as 64MiB. Zero disables caching"`
		Preload            bool   `long:"preload" env:"PRELOAD" description:"Warm the cache with pages of the database before serving"`
		PreloadConcurrency int    `long:"preload-concurrency" env:"PRELOAD_CONCURRENCY" default:"4" description:"Number of pages fetched in parallel when preloading"`
	} `group:"Cache" namespace:"cache" env-namespace:"CACHE"`
}

// RegisterStoreProviders registers constructors of each store backend.
func RegisterStoreProviders() {
	store.RegisterProviders(map[string]store.Constructor{
		"rocksdb":  rocksdb.New,
		"etcd":     etcd.New,
		"sqlite":   sqlkv.New,
		"postgres": sqlkv.New,
	})
}

// CachePages returns the number of pages of the configured read cache.
func (cfg StoreConfig) CachePages() (int, error) {
	var n, err = humanize.ParseBytes(cfg.Cache.MaxBytes)
	if err != nil {
		return 0, errors.WithMessagef(err, "parsing cache size %q", cfg.Cache.MaxBytes)
	} else if n == 0 {
		return 0, nil
	} else if n < pagefs.PageSize {
		return 1, nil
	}
	return int(n / pagefs.PageSize), nil
}

// Open the configured store, wrapped with a read cache if one is configured.
// Connectivity is verified with a probing read, which must complete within
// ConnectTimeout.
func (cfg StoreConfig) Open(ctx context.Context) (store.Store, error) {
	RegisterStoreProviders()

	pages, err := cfg.CachePages()
	if err != nil {
		return nil, err
	}
	metered, err := store.Open(cfg.URL)
	if err != nil {
		return nil, errors.WithMessage(err, "opening store")
	}
	var s store.Store = metered
	if pages != 0 {
		s = store.NewCacheStore(s, pages)
	}

	var probeCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var slow = time.AfterFunc(cfg.ConnectTimeout/2, func() {
		log.WithField("url", cfg.URL).Warn("store is taking a long time to respond")
	})
	defer slow.Stop()

	if _, _, err = s.Get(probeCtx, "kvsqlite:probe"); err != nil {
		_ = s.Close()
		return nil, errors.WithMessagef(err, "probing store %s", s.Provider())
	}

	log.WithFields(log.Fields{
		"provider":   s.Provider(),
		"cachePages": pages,
	}).Info("opened page store")

	return s, nil
}

// MustOpen is Open which panics on error.
func (cfg StoreConfig) MustOpen(ctx context.Context) store.Store {
	var s, err = cfg.Open(ctx)
	Must(err, "failed to open store", "url", cfg.URL)
	return s
}

// MaybePreload warms the cache with the pages of database |path|, if both
// a cache and preloading are configured.
func (cfg StoreConfig) MaybePreload(ctx context.Context, fs *pagefs.FS, path string) {
	var pages, err = cfg.CachePages()
	if err != nil || pages == 0 || !cfg.Cache.Preload {
		return
	}
	if _, err = fs.Preload(ctx, path, cfg.Cache.PreloadConcurrency, int64(pages)*pagefs.PageSize); err != nil {
		log.WithFields(log.Fields{"err": err, "path": path}).Warn("failed to preload cache")
	}
}
