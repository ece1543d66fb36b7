// Package offline mirrors a fixed list of static assets in memory and serves
// them cache-first, plus the service worker that does the same in the browser.
package offline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	precacheConcurrency = 4
	cacheControl        = "public, max-age=604800, stale-while-revalidate=86400"
)

// Entry is one cached asset.
type Entry struct {
	Path        string
	Body        []byte
	ETag        string
	ContentType string
	ModTime     time.Time
}

// Cache holds precached assets keyed by URL path.
type Cache struct {
	name   string
	root   string
	assets []string
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates a cache named name that mirrors assets (URL paths) from the
// public directory root.
func New(name, root string, assets []string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		name:    name,
		root:    root,
		assets:  append([]string(nil), assets...),
		logger:  logger,
		entries: map[string]Entry{},
	}
}

// Name returns the cache name shared with the service worker.
func (c *Cache) Name() string { return c.name }

// Assets returns the configured asset paths.
func (c *Cache) Assets() []string { return append([]string(nil), c.assets...) }

// Precache reads every asset concurrently. Missing files are logged and
// skipped; they will be served from disk on demand.
func (c *Cache) Precache(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(precacheConcurrency)
	for _, asset := range c.assets {
		asset := asset
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := c.read(asset)
			if err != nil {
				if os.IsNotExist(err) {
					c.logger.Warn("offline asset missing", zap.String("asset", asset))
					return nil
				}
				return fmt.Errorf("offline: precache %s: %w", asset, err)
			}
			c.Put(entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.logger.Info("offline cache ready", zap.String("cache", c.name), zap.Int("entries", c.Len()))
	return nil
}

// Get returns the cached entry for a URL path.
func (c *Cache) Get(urlPath string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[urlPath]
	return e, ok
}

// Put stores an entry, replacing any previous one.
func (c *Cache) Put(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Path] = e
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) read(urlPath string) (Entry, error) {
	clean := path.Clean("/" + strings.TrimPrefix(urlPath, "/"))
	file := filepath.Join(c.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	info, err := os.Stat(file)
	if err != nil {
		return Entry{}, err
	}
	body, err := os.ReadFile(file)
	if err != nil {
		return Entry{}, err
	}
	return NewEntry(clean, body, info.ModTime()), nil
}

// NewEntry builds an entry, deriving its weak ETag and content type.
func NewEntry(urlPath string, body []byte, modTime time.Time) Entry {
	sum := sha256.Sum256(body)
	ct := mime.TypeByExtension(path.Ext(urlPath))
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	if strings.HasSuffix(urlPath, ".webmanifest") {
		ct = "application/manifest+json"
	}
	return Entry{
		Path:        urlPath,
		Body:        body,
		ETag:        `W/"` + hex.EncodeToString(sum[:]) + `"`,
		ContentType: ct,
		ModTime:     modTime,
	}
}

// Handler serves cached assets first and falls back to next on a miss.
func (c *Cache) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		entry, ok := c.Get(r.URL.Path)
		if !ok {
			w.Header().Set("X-Offline-Cache", "miss")
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("X-Offline-Cache", "hit")
		h.Set("Vary", "Accept-Encoding")
		h.Set("Cache-Control", cacheControl)
		h.Set("ETag", entry.ETag)
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == entry.ETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		h.Set("Content-Type", entry.ContentType)
		http.ServeContent(w, r, entry.Path, entry.ModTime, bytes.NewReader(entry.Body))
	})
}
