package cache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/goerr/v2"

	"github.com/ObiAU/airwatch/internal/models"
)

// Cache is a bounded set of recently seen message fingerprints. When full,
// the entry added longest ago is evicted; lookups do not refresh entries.
type Cache struct {
	entries   *lru.Cache[models.Fingerprint, time.Time]
	capacity  int
	hits      atomic.Uint64
	evictions atomic.Uint64
}

func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, goerr.New("cache capacity must be positive", goerr.V("capacity", capacity))
	}

	c := &Cache{capacity: capacity}
	entries, err := lru.NewWithEvict(capacity, func(models.Fingerprint, time.Time) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create fingerprint cache")
	}
	c.entries = entries
	return c, nil
}

// Add records fp as seen at the given time and reports whether it was
// already present. An existing entry keeps its original position.
func (c *Cache) Add(fp models.Fingerprint, seenAt time.Time) bool {
	existed, _ := c.entries.ContainsOrAdd(fp, seenAt)
	if existed {
		c.hits.Add(1)
	}
	return existed
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"fingerprints": c.Len(),
		"capacity":     c.capacity,
		"duplicates":   c.hits.Load(),
		"evictions":    c.evictions.Load(),
	}
}
