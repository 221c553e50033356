package ocr

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// LoadObserver is notified after every model-set load attempt.
type LoadObserver func(key string, err error)

// ModelCache holds loaded model sets keyed by language combination.
//
// Each key is initialized lazily on first use and at most once, even when
// many goroutines ask for it at the same time: concurrent callers for the
// same key wait on a per-key lock while one of them loads. Different keys
// load independently. A failed load leaves nothing behind, so the next call
// tries again. Once populated, an entry is read without taking the per-key
// lock.
type ModelCache struct {
	loader   Loader
	observer LoadObserver

	mu      sync.Mutex
	entries map[string]*cacheEntry
	closed  bool

	loads atomic.Int64
}

type cacheEntry struct {
	mu     sync.Mutex
	ready  atomic.Bool
	models ModelSet
}

// ErrCacheClosed is returned by Get after Close.
var ErrCacheClosed = errors.New("model cache closed")

// NewModelCache creates an empty cache backed by loader.
func NewModelCache(loader Loader) *ModelCache {
	return &ModelCache{
		loader:  loader,
		entries: make(map[string]*cacheEntry),
	}
}

// Observe registers fn to be called after each load attempt. It must be set
// before the cache is shared.
func (c *ModelCache) Observe(fn LoadObserver) {
	c.observer = fn
}

// CacheKey returns the cache key for a language list: the codes sorted,
// de-duplicated and joined with "+", the same notation Tesseract uses for
// combined languages.
func CacheKey(languages []string) string {
	return strings.Join(sortedUnique(languages), "+")
}

func sortedUnique(languages []string) []string {
	out := make([]string, 0, len(languages))
	seen := make(map[string]bool, len(languages))
	for _, l := range languages {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Get returns the model set for languages, loading it on first use.
func (c *ModelCache) Get(languages []string) (ModelSet, error) {
	langs := sortedUnique(languages)
	if len(langs) == 0 {
		return nil, errors.New("no languages requested")
	}
	key := strings.Join(langs, "+")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	if e.ready.Load() {
		return e.models, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready.Load() {
		return e.models, nil
	}

	c.loads.Add(1)
	models, err := c.loader(langs)
	if err == nil && models == nil {
		err = errors.New("loader returned no models")
	}
	if c.observer != nil {
		c.observer(key, err)
	}
	if err != nil {
		return nil, err
	}

	// Close may have run while the load was in flight; it has already
	// detached this entry, so the new set is released here instead.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		models.Close()
		return nil, ErrCacheClosed
	}
	e.models = models
	e.ready.Store(true)
	c.mu.Unlock()
	return models, nil
}

// Loads returns the number of load attempts made so far.
func (c *ModelCache) Loads() int64 {
	return c.loads.Load()
}

// Keys returns the sorted keys of the populated entries.
func (c *ModelCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if e.ready.Load() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Close releases every loaded model set. Subsequent Get calls fail with
// ErrCacheClosed, as do calls whose load was still in flight; sets returned
// before Close must not be used after it.
func (c *ModelCache) Close() error {
	c.mu.Lock()
	c.closed = true
	entries := c.entries
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		e.mu.Lock()
		if e.ready.Load() {
			if err := e.models.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}
