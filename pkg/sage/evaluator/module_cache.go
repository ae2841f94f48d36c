package evaluator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ModuleEntry is the cached result of one remote fetch.
type ModuleEntry struct {
	Locator   string
	Files     []SourceFile
	FetchedAt time.Time

	mu      sync.Mutex
	symbols []string
}

// Symbols returns the names the most recent load of this entry defined.
func (e *ModuleEntry) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.symbols...)
}

func (e *ModuleEntry) setSymbols(names []string) {
	e.mu.Lock()
	e.symbols = names
	e.mu.Unlock()
}

// ModuleCache holds fetched module text for the life of the process.
// Concurrent requests for the same locator share a single fetch, and
// failed fetches are not remembered.
type ModuleCache struct {
	mu      sync.RWMutex
	entries map[string]*ModuleEntry
	group   singleflight.Group
}

// NewModuleCache returns an empty cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{entries: make(map[string]*ModuleEntry)}
}

// DefaultModuleCache is shared by every evaluation that does not set its
// own cache.
var DefaultModuleCache = NewModuleCache()

// Lookup returns the entry for locator, if one has been fetched.
func (c *ModuleCache) Lookup(locator string) (*ModuleEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[locator]
	return e, ok
}

// Get returns the cached entry for locator, calling fetch on a miss. The
// fetch is shared by every caller waiting on locator, so it runs detached
// from ctx: a caller that gives up stops waiting without failing the rest.
// Fetchers bound their own running time.
func (c *ModuleCache) Get(ctx context.Context, locator string, fetch func(context.Context) ([]SourceFile, error)) (*ModuleEntry, error) {
	if e, ok := c.Lookup(locator); ok {
		return e, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(locator, func() (any, error) {
		if e, ok := c.Lookup(locator); ok {
			return e, nil
		}
		files, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		e := &ModuleEntry{Locator: locator, Files: files, FetchedAt: time.Now()}
		c.mu.Lock()
		c.entries[locator] = e
		c.mu.Unlock()
		return e, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ModuleEntry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of cached locators.
func (c *ModuleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *ModuleCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*ModuleEntry)
}
