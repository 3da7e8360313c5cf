package store

import (
	"fmt"
	"net/url"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	constructors = map[string]Constructor{
		"memory": func(ep *url.URL) (Store, error) { return NewMemoryStore(), nil },
	}
	constructorsMu sync.RWMutex
)

// RegisterProviders registers store constructors for different storage schemes.
// This should be called during initialization to register all available store types.
func RegisterProviders(providers map[string]Constructor) {
	constructorsMu.Lock()
	defer constructorsMu.Unlock()

	for scheme, constructor := range providers {
		constructors[scheme] = constructor
	}
}

// GetProviders returns a copy of the currently registered store constructors.
// This is useful for tests that need to preserve and restore providers.
func GetProviders() map[string]Constructor {
	constructorsMu.RLock()
	defer constructorsMu.RUnlock()

	var copy = make(map[string]Constructor, len(constructors))
	for scheme, constructor := range constructors {
		copy[scheme] = constructor
	}
	return copy
}

// Open parses the store endpoint |ep| and builds a MeteredStore of the Store
// constructed by the provider registered for its scheme.
func Open(ep string) (*MeteredStore, error) {
	var u, err = url.Parse(ep)
	if err != nil {
		return nil, fmt.Errorf("parsing store URL %q: %w", ep, err)
	}

	constructorsMu.RLock()
	var constructor, ok = constructors[u.Scheme]
	constructorsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported store scheme: %s", u.Scheme)
	}
	store, err := constructor(u)
	if err != nil {
		return nil, err
	}
	activeStores.Inc()

	return NewMeteredStore(store), nil
}

// ParseArgs decodes the query arguments of store URL |ep| into |args|,
// which is a pointer to a struct of gorilla/schema tagged fields.
// Unknown arguments are an error.
func ParseArgs(ep *url.URL, args interface{}) error {
	var decoder = schema.NewDecoder()
	decoder.IgnoreUnknownKeys(false)
	decoder.RegisterConverter(time.Duration(0), func(s string) reflect.Value {
		if d, err := time.ParseDuration(s); err == nil {
			return reflect.ValueOf(d)
		}
		return reflect.Value{}
	})

	if q, err := url.ParseQuery(ep.RawQuery); err != nil {
		return err
	} else if err = decoder.Decode(args, q); err != nil {
		return fmt.Errorf("parsing store URL arguments: %s", err)
	}
	return nil
}

var (
	activeStores = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kvsqlite_store_active",
		Help: "Number of open page stores",
	})

	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kvsqlite_store_operation_duration_seconds",
		Help:    "Duration of store operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 100us to ~3s
	}, []string{"store", "operation", "status"})

	storeOperationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvsqlite_store_operation_total",
		Help: "Total number of store operations",
	}, []string{"store", "operation", "status"})

	storeWriteBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvsqlite_store_write_bytes_total",
		Help: "Total value bytes written to stores",
	}, []string{"store"})

	storeBatchOps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kvsqlite_store_batch_ops_count",
		Help:    "Number of operations in atomic write batches",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048 ops
	}, []string{"store"})

	storeCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvsqlite_store_cache_total",
		Help: "Total number of cached store reads, by result",
	}, []string{"result"})
)
