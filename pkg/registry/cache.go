package registry

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/observability"
)

const cacheType = "subscriber"

// subscriberCache keeps recently read subscribers by id. Entries are copies so
// callers cannot mutate cached state.
type subscriberCache struct {
	lru     *lru.LRU[int64, model.Subscriber]
	metrics *observability.Metrics
}

func newSubscriberCache(size int, ttl time.Duration, metrics *observability.Metrics) *subscriberCache {
	if size < 1 {
		size = 1
	}
	return &subscriberCache{
		lru:     lru.NewLRU[int64, model.Subscriber](size, nil, ttl),
		metrics: metrics,
	}
}

func (c *subscriberCache) get(id int64) (*model.Subscriber, bool) {
	sub, ok := c.lru.Get(id)
	c.metrics.ObserveCache(cacheType, ok)
	if !ok {
		return nil, false
	}
	return &sub, true
}

func (c *subscriberCache) add(sub *model.Subscriber) {
	c.lru.Add(sub.ID, *sub)
}

func (c *subscriberCache) remove(id int64) {
	c.lru.Remove(id)
}

func (c *subscriberCache) len() int {
	return c.lru.Len()
}
