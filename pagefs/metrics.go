package pagefs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvsqlite_vfs_operations_total",
		Help: "Total number of VFS operations, by operation and status",
	}, []string{"operation", "status"})

	openHandles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kvsqlite_vfs_open_handles",
		Help: "Number of open file handles",
	})

	lockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kvsqlite_vfs_lock_wait_seconds",
		Help:    "Time spent blocked awaiting a file lock, by outcome",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
	}, []string{"outcome"})

	batchCommitPages = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kvsqlite_vfs_batch_commit_pages",
		Help:    "Number of pages written by each atomic batch commit",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048 pages
	})

	preloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kvsqlite_vfs_preload_bytes_total",
		Help: "Total page bytes read by cache preloading",
	})
)
