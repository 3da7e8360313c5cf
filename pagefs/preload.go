package pagefs

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Preload reads the pages of |path| from offset zero, |concurrency| pages at
// a time, until an absent page is found or |maxBytes| have been read.
// It's intended to warm a store.CacheStore prior to serving queries, and
// returns the number of bytes read.
func (fs *FS) Preload(ctx context.Context, path string, concurrency int, maxBytes int64) (int64, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	var started = time.Now()
	var total int64

	for offset := int64(0); maxBytes <= 0 || total < maxBytes; offset += int64(concurrency) * PageSize {
		var sizes = make([]int, concurrency)
		var present = make([]bool, concurrency)
		var grp, gctx = errgroup.WithContext(ctx)

		for i := 0; i != concurrency; i++ {
			var i, key = i, PageKey(path, offset+int64(i)*PageSize)
			grp.Go(func() error {
				var page, ok, err = fs.store.Get(gctx, key)
				sizes[i], present[i] = len(page), ok
				return err
			})
		}
		if err := grp.Wait(); err != nil {
			return total, &Error{Code: IORead, Op: "preload", Path: path, Err: err}
		}

		for i := range sizes {
			if !present[i] {
				fs.logPreload(path, total, started)
				return total, nil
			}
			total += int64(sizes[i])
			preloadBytesTotal.Add(float64(sizes[i]))
		}
	}
	fs.logPreload(path, total, started)
	return total, nil
}

func (fs *FS) logPreload(path string, total int64, started time.Time) {
	log.WithFields(log.Fields{
		"path":    path,
		"bytes":   humanize.IBytes(uint64(total)),
		"elapsed": time.Since(started),
	}).Info("preloaded file pages")
}
