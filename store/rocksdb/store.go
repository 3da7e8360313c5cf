// Package rocksdb implements store.Store atop a local RocksDB database,
// addressed by URLs of the form rocksdb:///path/to/db?max-open-files=256.
package rocksdb

import (
	"bytes"
	"context"
	"net/url"

	rocks "github.com/jgraettinger/gorocksdb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/kvsqlite/store"
)

// StoreQueryArgs are parsed from the query arguments of a rocksdb:// URL.
type StoreQueryArgs struct {
	// MaxOpenFiles bounds file handles held open by the DB. Zero uses the RocksDB default.
	MaxOpenFiles int `schema:"max-open-files"`
	// DisableWAL skips the write-ahead log. Buffered writes are then durable
	// only after a Flush, and Durable writes are flushed immediately.
	DisableWAL bool `schema:"disable-wal"`
}

// Store is a store.Store backed by RocksDB.
type Store struct {
	DB           *rocks.DB
	Options      *rocks.Options
	ReadOptions  *rocks.ReadOptions
	WriteOptions *rocks.WriteOptions
	SyncOptions  *rocks.WriteOptions

	args StoreQueryArgs
	dir  string
}

// New opens the RocksDB at the path of |ep|, creating it if missing.
func New(ep *url.URL) (store.Store, error) {
	var args StoreQueryArgs
	if err := store.ParseArgs(ep, &args); err != nil {
		return nil, err
	} else if ep.Path == "" {
		return nil, errors.New("rocksdb URL must include a database path")
	}
	return Open(ep.Path, args)
}

// Open the RocksDB at |dir| with the given arguments.
func Open(dir string, args StoreQueryArgs) (*Store, error) {
	var s = &Store{
		Options:      rocks.NewDefaultOptions(),
		ReadOptions:  rocks.NewDefaultReadOptions(),
		WriteOptions: rocks.NewDefaultWriteOptions(),
		SyncOptions:  rocks.NewDefaultWriteOptions(),
		args:         args,
		dir:          dir,
	}
	s.Options.SetCreateIfMissing(true)
	if args.MaxOpenFiles != 0 {
		s.Options.SetMaxOpenFiles(args.MaxOpenFiles)
	}
	s.WriteOptions.DisableWAL(args.DisableWAL)
	s.SyncOptions.DisableWAL(args.DisableWAL)
	s.SyncOptions.SetSync(!args.DisableWAL)

	var err error
	if s.DB, err = rocks.OpenDb(s.Options, dir); err != nil {
		s.destroyOptions()
		return nil, errors.WithMessagef(err, "opening RocksDB at %s", dir)
	}
	log.WithFields(log.Fields{
		"dir":          dir,
		"maxOpenFiles": args.MaxOpenFiles,
		"disableWAL":   args.DisableWAL,
	}).Info("opened RocksDB page store")

	return s, nil
}

func (s *Store) Provider() string { return "rocksdb" }

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var slice, err = s.DB.Get(s.ReadOptions, []byte(key))
	if err != nil {
		return nil, false, err
	}
	defer slice.Free()

	if slice.Exists() {
		return append([]byte{}, slice.Data()...), true, nil
	}
	// RocksDB may represent a present, zero-length value as a nil Slice.
	// Disambiguate with a point Seek.
	var it = s.DB.NewIterator(s.ReadOptions)
	defer it.Close()

	it.Seek([]byte(key))
	if !it.Valid() {
		return nil, false, it.Err()
	}
	var found = it.Key()
	defer found.Free()

	if bytes.Equal(found.Data(), []byte(key)) {
		return []byte{}, true, nil
	}
	return nil, false, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, d store.Durability) error {
	var b store.Batch
	b.Put(key, value)
	return s.Write(ctx, &b, d)
}

func (s *Store) Delete(ctx context.Context, key string, d store.Durability) error {
	var b store.Batch
	b.Delete(key)
	return s.Write(ctx, &b, d)
}

func (s *Store) Write(ctx context.Context, b *store.Batch, d store.Durability) error {
	if b.Len() == 0 {
		return nil
	}
	var wb = rocks.NewWriteBatch()
	defer wb.Destroy()

	for _, op := range b.Ops {
		if op.Delete {
			wb.Delete([]byte(op.Key))
		} else {
			wb.Put([]byte(op.Key), op.Value)
		}
	}

	var wo = s.WriteOptions
	if d == store.Durable {
		wo = s.SyncOptions
	}
	if err := s.DB.Write(wo, wb); err != nil {
		return err
	}
	if d == store.Durable && s.args.DisableWAL {
		return s.Flush(ctx)
	}
	return nil
}

// Flush memtables to SST files, and sync the WAL (if enabled).
func (s *Store) Flush(context.Context) error {
	var fo = rocks.NewDefaultFlushOptions()
	defer fo.Destroy()
	fo.SetWait(true)

	return s.DB.Flush(fo)
}

// Close the DB and release its options.
func (s *Store) Close() error {
	s.DB.Close()
	s.destroyOptions()
	return nil
}

func (s *Store) destroyOptions() {
	s.Options.Destroy()
	s.ReadOptions.Destroy()
	s.WriteOptions.Destroy()
	s.SyncOptions.Destroy()
}
