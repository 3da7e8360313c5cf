package pagefs

import "strconv"

// PageSize is the fixed size of a file page. Together with the key layout of
// PageKey, it's part of the persisted format: a compatible reader or writer
// of the backing store must use the same value.
const PageSize = 4096

// PageOffset returns the offset of the page containing |offset|.
func PageOffset(offset int64) int64 { return (offset / PageSize) * PageSize }

// WithinPage returns the position of |offset| relative to the start of its page.
func WithinPage(offset int64) int64 { return offset % PageSize }

// PageKey returns the store key of the page of |path| at |pageOffset|,
// as "{path}:page:{pageOffset}". The raw |path| is itself the key of the
// file's existence marker.
func PageKey(path string, pageOffset int64) string {
	return path + ":page:" + strconv.FormatInt(pageOffset, 10)
}

// span is the portion of an I/O request which falls within a single page.
type span struct {
	page   int64 // Offset of the page.
	within int   // Offset within the page.
	lo, hi int   // Bounds of the span within the request buffer.
}

// pageSpans decomposes a request of |n| bytes at |offset| into ascending
// spans, each contained within one page.
func pageSpans(offset int64, n int) []span {
	var out []span
	for lo := 0; lo < n; {
		var at = offset + int64(lo)
		var within = int(WithinPage(at))
		var hi = lo + PageSize - within

		if hi > n {
			hi = n
		}
		out = append(out, span{page: PageOffset(at), within: within, lo: lo, hi: hi})
		lo = hi
	}
	return out
}
