package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportCache is an optional Redis read-through cache for dashboard
// reports, keyed by (view, base date). It sits outside the engine's
// correctness contract: every computation re-reads its inputs fresh, the
// cache only short-circuits repeated identical requests. A nil
// *ReportCache is valid and disables caching.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache creates a report cache. Returns nil when client is nil.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{client: client, ttl: ttl}
}

func cacheKey(view, baseDate string) string {
	return fmt.Sprintf("report:%s:%s", view, baseDate)
}

// Get unmarshals a cached report into target. Returns false on miss or
// any Redis error; cache failures never surface to callers.
func (c *ReportCache) Get(ctx context.Context, view, baseDate string, target any) bool {
	if c == nil {
		return false
	}
	data, err := c.client.Get(ctx, cacheKey(view, baseDate)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, target) == nil
}

// Set stores a report under (view, baseDate) with the configured TTL.
// Best-effort; errors are dropped.
func (c *ReportCache) Set(ctx context.Context, view, baseDate string, report any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(view, baseDate), data, c.ttl)
}
