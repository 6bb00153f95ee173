package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/yosefsha/myassistant/ai/internal/strutil"
	"github.com/yosefsha/myassistant/ai/specialist"
)

// CacheRecorder receives cache hit/miss counts. *metrics.PrometheusExporter
// satisfies it.
type CacheRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

const cacheType = "fallback"

// ScoreCache memoizes fallback selections keyed by (query, previous, hint).
// Selections are pure functions of their key, so a hit never changes a
// routing result.
type ScoreCache struct {
	cache    *ristretto.Cache[string, Selection]
	ttl      time.Duration
	recorder CacheRecorder
	hits     atomic.Int64
	misses   atomic.Int64
}

// CacheConfig contains configuration for ScoreCache.
type CacheConfig struct {
	Capacity int           // Maximum number of entries (default: 1000)
	TTL      time.Duration // default: 10min
	Recorder CacheRecorder // optional
}

// NewScoreCache creates a ristretto-backed selection cache.
func NewScoreCache(cfg CacheConfig) (*ScoreCache, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, Selection]{
		NumCounters: int64(cfg.Capacity) * 10, // ~10x expected items
		MaxCost:     int64(cfg.Capacity),
		BufferItems: 64,
		// Entries cost 1, so MaxCost is an entry count.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &ScoreCache{cache: c, ttl: cfg.TTL, recorder: cfg.Recorder}, nil
}

// Get returns the cached selection for the key, if present.
func (c *ScoreCache) Get(text string, previous specialist.ID, hint *Hint) (Selection, bool) {
	sel, ok := c.cache.Get(cacheKey(text, previous, hint))
	if !ok {
		c.misses.Add(1)
		if c.recorder != nil {
			c.recorder.RecordCacheMiss(cacheType)
		}
		return Selection{}, false
	}
	c.hits.Add(1)
	if c.recorder != nil {
		c.recorder.RecordCacheHit(cacheType)
	}
	slog.Debug("fallback cache hit", "query", strutil.Truncate(text, 50), "specialist", sel.Specialist)
	return sel.clone(), true
}

// Set stores a selection. ristretto applies writes asynchronously; Wait
// blocks until they are visible.
func (c *ScoreCache) Set(text string, previous specialist.ID, hint *Hint, sel Selection) {
	c.cache.SetWithTTL(cacheKey(text, previous, hint), sel.clone(), 1, c.ttl)
}

// Wait blocks until buffered writes are applied.
func (c *ScoreCache) Wait() {
	c.cache.Wait()
}

// Close releases the cache's goroutines.
func (c *ScoreCache) Close() {
	c.cache.Close()
}

// CacheStats is a hit/miss summary.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns hit/miss counters since creation.
func (c *ScoreCache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	stats := CacheStats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// cacheKey hashes the normalized query with the rest of the key. Queries
// that tokenize identically share an entry.
func cacheKey(text string, previous specialist.ID, hint *Hint) string {
	h := sha256.New()
	h.Write([]byte(strutil.Normalize(text)))
	h.Write([]byte{0})
	h.Write([]byte(previous))
	if hint != nil {
		h.Write([]byte{0})
		h.Write([]byte(hint.Specialist))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(hint.Confidence, 'g', -1, 64)))
	}
	return "fallback:" + hex.EncodeToString(h.Sum(nil)[:16])
}

func (s Selection) clone() Selection {
	s.Scores = append([]Score(nil), s.Scores...)
	return s
}
