package reports

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobtrackr_report_cache_hits_total",
		Help: "Number of stats requests served from the report cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobtrackr_report_cache_misses_total",
		Help: "Number of stats requests that rebuilt the report.",
	})
)

const cacheKeySeparator = "|"

// reportCache keeps recently built reports per owner, local day and time zone.
// A nil *reportCache is a disabled cache.
//
// Each owner has a generation that invalidateOwner bumps; a report built
// against an older generation is never stored.
type reportCache struct {
	entries *expirable.LRU[string, Report]

	mutex       sync.Mutex
	generations map[string]uint64
}

func newReportCache(size int, ttl time.Duration) *reportCache {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	return &reportCache{
		entries:     expirable.NewLRU[string, Report](size, nil, ttl),
		generations: make(map[string]uint64),
	}
}

// generation returns the owner's current generation; read it before fetching.
func (c *reportCache) generation(ownerID string) uint64 {
	if c == nil {
		return 0
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.generations[ownerID]
}

func reportCacheKey(ownerID string, now time.Time) string {
	return ownerID + cacheKeySeparator + now.Location().String() + cacheKeySeparator + now.Format(time.DateOnly)
}

func (c *reportCache) get(key string) (Report, bool) {
	if c == nil {
		return Report{}, false
	}
	report, ok := c.entries.Get(key)
	if ok {
		cacheHitsTotal.Inc()
		return report, true
	}
	cacheMissesTotal.Inc()
	return Report{}, false
}

// set stores the report unless the owner was invalidated since generation was read.
func (c *reportCache) set(ownerID string, generation uint64, key string, report Report) bool {
	if c == nil {
		return false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.generations[ownerID] != generation {
		return false
	}
	c.entries.Add(key, report)
	return true
}

// invalidateOwner drops every cached report belonging to the owner.
func (c *reportCache) invalidateOwner(ownerID string) {
	if c == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.generations[ownerID]++
	prefix := ownerID + cacheKeySeparator
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Remove(key)
		}
	}
}
