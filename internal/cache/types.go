package cache

import "time"

// CachedDetection is a cached context-detection result for one document's
// extracted text.
type CachedDetection struct {
	Personal   map[string][]string `json:"personal"`
	Additional map[string][]string `json:"additional"`
	CachedAt   time.Time           `json:"cached_at"`
	TTL        int64               `json:"ttl_seconds"`
}

// Stats tracks cache performance counters
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	TotalKeys int64   `json:"total_keys"`
}
