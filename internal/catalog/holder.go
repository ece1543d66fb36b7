package catalog

import "sync/atomic"

// Holder publishes the current catalog to concurrent readers. The zero value
// serves an empty catalog.
type Holder struct {
	current atomic.Pointer[Catalog]
	ready   atomic.Bool
}

// Get returns the published catalog, or an empty one when nothing was stored.
func (h *Holder) Get() *Catalog {
	if c := h.current.Load(); c != nil {
		return c
	}
	return Empty()
}

// Set publishes c and marks the holder ready.
func (h *Holder) Set(c *Catalog) {
	if c == nil {
		return
	}
	h.current.Store(c)
	h.ready.Store(true)
}

// Ready reports whether a catalog was ever published.
func (h *Holder) Ready() bool {
	return h.ready.Load()
}
