package service

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/poll-blend/internal/metrics"
	"github.com/yourusername/poll-blend/internal/models"
)

const activeKey = "active"

// ParameterCache keeps fitted runs in memory so forecasts do not hit the
// database. Cached runs are never mutated.
type ParameterCache struct {
	cache  *cache.Cache
	ttl    time.Duration
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewParameterCache creates a cache whose entries expire after ttl.
func NewParameterCache(ttl, cleanupInterval time.Duration) *ParameterCache {
	return &ParameterCache{
		cache: cache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

// Get returns the cached run with id.
func (pc *ParameterCache) Get(id uuid.UUID) (models.FitRun, bool) {
	return pc.get(id.String())
}

// Set stores run under its id.
func (pc *ParameterCache) Set(run models.FitRun) {
	pc.cache.Set(run.ID.String(), run, pc.ttl)
}

// GetActive returns the cached active run.
func (pc *ParameterCache) GetActive() (models.FitRun, bool) {
	return pc.get(activeKey)
}

// SetActive stores run as the active run.
func (pc *ParameterCache) SetActive(run models.FitRun) {
	pc.cache.Set(activeKey, run, pc.ttl)
	pc.Set(run)
}

// InvalidateActive forgets which run is active.
func (pc *ParameterCache) InvalidateActive() {
	pc.cache.Delete(activeKey)
}

// Clear flushes the entire cache
func (pc *ParameterCache) Clear() {
	pc.cache.Flush()
	pc.hits.Store(0)
	pc.misses.Store(0)
}

// Stats returns cache statistics
func (pc *ParameterCache) Stats() (hits, misses uint64, ratio float64) {
	hits = pc.hits.Load()
	misses = pc.misses.Load()
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of items in cache
func (pc *ParameterCache) ItemCount() int {
	return pc.cache.ItemCount()
}

func (pc *ParameterCache) get(key string) (models.FitRun, bool) {
	v, found := pc.cache.Get(key)
	run, ok := v.(models.FitRun)
	if found && ok {
		pc.hits.Add(1)
	} else {
		pc.misses.Add(1)
	}
	_, _, ratio := pc.Stats()
	metrics.UpdateCacheHitRatio(ratio)
	return run, found && ok
}
