// File: internal/plancache/cache.go

// Package plancache persists the most recent scroll plan per (query, target)
// pair. Prediction costs several full page loads on the measurement browser,
// so plans are reused, but page layouts drift (ads, trending modules), so
// every plan expires after a fixed number of reuses regardless of validity.
package plancache

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultStorePath resolves the default location of the plan store under the
// user's home directory.
func DefaultStorePath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".blindscroll", "plan_cache.json"), nil
}

// storeFile is the on-disk shape of the cache.
type storeFile struct {
	Cache    map[string]Plan `json:"cache"`
	UseCount map[string]int  `json:"use_count"`
}

// Cache is a durable plan store keyed by (query, target). Every mutation is
// persisted immediately: recomputation is far more expensive than a small
// write, and a crash mid-sequence must not wedge the store in a stale state.
type Cache struct {
	mu              sync.Mutex
	path            string
	refreshInterval int
	plans           map[string]Plan
	useCount        map[string]int
	log             *zap.Logger
}

// New opens (or creates) the store at path. An unreadable store is replaced by
// an empty one rather than failing startup; losing cache history is cheaper
// than losing availability.
func New(path string, refreshInterval int, logger *zap.Logger) (*Cache, error) {
	if refreshInterval <= 0 {
		return nil, fmt.Errorf("plancache: refresh interval must be positive, got %d", refreshInterval)
	}

	c := &Cache{
		path:            path,
		refreshInterval: refreshInterval,
		plans:           make(map[string]Plan),
		useCount:        make(map[string]int),
		log:             logger.Named("plancache"),
	}
	c.load()
	return c, nil
}

// key builds the compound cache key. Both fields are escaped so the separator
// cannot occur inside either of them.
func key(query, target string) string {
	return url.QueryEscape(query) + "|" + url.QueryEscape(target)
}

// load reads the persisted store. Corruption resets to an empty store.
func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("Failed to read plan store, starting empty", zap.String("path", c.path), zap.Error(err))
		}
		return
	}

	var sf storeFile
	if err := json.Unmarshal(data, &sf); err != nil {
		c.log.Warn("Plan store is corrupt, starting empty", zap.String("path", c.path), zap.Error(err))
		return
	}

	if sf.Cache != nil {
		c.plans = sf.Cache
	}
	if sf.UseCount != nil {
		c.useCount = sf.UseCount
	}
	c.log.Info("Loaded plan store", zap.String("path", c.path), zap.Int("entries", len(c.plans)))
}

// persist writes the store atomically (temp file + rename). Callers hold c.mu.
func (c *Cache) persist() error {
	data, err := json.MarshalIndent(storeFile{Cache: c.plans, UseCount: c.useCount}, "", "  ")
	if err != nil {
		return fmt.Errorf("plancache: failed to marshal store: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("plancache: failed to create store directory: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("plancache: failed to write store: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("plancache: failed to replace store: %w", err)
	}
	return nil
}

// Get returns the cached plan for (query, target), or ok=false when the entry
// is missing or stale and must be recomputed. A staleness-driven miss resets
// the use counter to zero and persists immediately.
func (c *Cache) Get(query, target string) (Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(query, target)
	count := c.useCount[k]

	// count == 0 means "first use since marked stale"; reaching the refresh
	// interval forces a recompute even if the plan is structurally fine.
	if count == 0 || count >= c.refreshInterval {
		c.useCount[k] = 0
		if err := c.persist(); err != nil {
			c.log.Warn("Failed to persist stale-reset", zap.Error(err))
		}
		return Plan{}, false
	}

	plan, ok := c.plans[k]
	if !ok {
		return Plan{}, false
	}
	return plan, true
}

// Set stores a freshly computed plan and starts its reuse counter at 1.
func (c *Cache) Set(query, target string, plan Plan) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(query, target)
	c.plans[k] = plan
	c.useCount[k] = 1
	return c.persist()
}

// Increment records one successful reuse of the cached plan.
func (c *Cache) Increment(query, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(query, target)
	c.useCount[k]++
	return c.persist()
}

// UseCount reports the current reuse counter for (query, target).
func (c *Cache) UseCount(query, target string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.useCount[key(query, target)]
}

// RefreshInterval returns the configured reuse bound.
func (c *Cache) RefreshInterval() int {
	return c.refreshInterval
}
