package models

import "time"

// SystemMetrics is a point-in-time summary of request, cache and query instrumentation.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	DBQueryCount             uint64            `json:"db_query_count"`
	AverageDBQueryDurationMs float64           `json:"average_db_query_duration_ms"`
	WriteEvents              map[string]uint64 `json:"write_events"`
	Goroutines               int               `json:"goroutines"`
	UptimeSeconds            int64             `json:"uptime_seconds"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
