// Package etcd implements store.Store atop an Etcd cluster, addressed by URLs
// of the form etcd://host:2379/key/prefix?dial-timeout=5s. Every key of the
// Store is rooted under the URL path.
//
// Etcd bounds the operations and total size of a single transaction
// (--max-txn-ops and --max-request-bytes). Atomic batches exceeding these
// limits fail, and the server limits must be sized to the largest expected
// SQLite transaction.
package etcd

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.gazette.dev/kvsqlite/store"
)

// StoreQueryArgs are parsed from the query arguments of an etcd:// URL.
type StoreQueryArgs struct {
	DialTimeout time.Duration `schema:"dial-timeout"`
	// TLS selects an https:// client endpoint.
	TLS bool `schema:"tls"`
}

// Store is a store.Store backed by Etcd.
type Store struct {
	Client *clientv3.Client
	Prefix string

	owned bool
}

// New dials the Etcd cluster of |ep|.
func New(ep *url.URL) (store.Store, error) {
	var args = StoreQueryArgs{DialTimeout: 10 * time.Second}
	if err := store.ParseArgs(ep, &args); err != nil {
		return nil, err
	} else if ep.Host == "" {
		return nil, errors.New("etcd URL must include a host")
	}

	var scheme = "http://"
	if args.TLS {
		scheme = "https://"
	}
	var client, err = clientv3.New(clientv3.Config{
		Endpoints:   []string{scheme + ep.Host},
		DialTimeout: args.DialTimeout,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "dialing etcd %s", ep.Host)
	}
	log.WithFields(log.Fields{
		"endpoint": ep.Host,
		"prefix":   ep.Path,
	}).Info("opened etcd page store")

	var s = NewFromClient(client, ep.Path)
	s.owned = true
	return s, nil
}

// NewFromClient returns a Store of keys under |prefix| using an existing |client|.
// The client is not closed by Store.Close.
func NewFromClient(client *clientv3.Client, prefix string) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{Client: client, Prefix: prefix}
}

func (s *Store) Provider() string { return "etcd" }

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var resp, err = s.Client.Get(ctx, s.Prefix+key)
	if err != nil {
		return nil, false, err
	} else if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return append([]byte{}, resp.Kvs[0].Value...), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, _ store.Durability) error {
	var _, err = s.Client.Put(ctx, s.Prefix+key, string(value))
	return err
}

func (s *Store) Delete(ctx context.Context, key string, _ store.Durability) error {
	var _, err = s.Client.Delete(ctx, s.Prefix+key)
	return err
}

// Write applies the Batch as a single unconditioned Etcd transaction.
// A key may appear only once within an Etcd transaction, so only the final
// operation of each key is retained.
func (s *Store) Write(ctx context.Context, b *store.Batch, _ store.Durability) error {
	if b.Len() == 0 {
		return nil
	}
	var last = make(map[string]int, b.Len())
	for i, op := range b.Ops {
		last[op.Key] = i
	}

	var ops = make([]clientv3.Op, 0, len(last))
	for i, op := range b.Ops {
		if last[op.Key] != i {
			continue
		} else if op.Delete {
			ops = append(ops, clientv3.OpDelete(s.Prefix+op.Key))
		} else {
			ops = append(ops, clientv3.OpPut(s.Prefix+op.Key, string(op.Value)))
		}
	}

	var resp, err = s.Client.Txn(ctx).Then(ops...).Commit()
	if err == nil && !resp.Succeeded {
		err = errors.New("etcd transaction unexpectedly failed")
	}
	return err
}

// Flush is a no-op: Etcd acknowledges writes only after they're committed
// to a quorum of the cluster.
func (s *Store) Flush(context.Context) error { return nil }

func (s *Store) Close() error {
	if s.owned {
		return s.Client.Close()
	}
	return nil
}
