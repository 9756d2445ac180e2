package models

import "time"

// SystemMetrics is a lightweight snapshot of the process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	UploadsSucceeded         uint64    `json:"uploadsSucceeded"`
	UploadsFailed            uint64    `json:"uploadsFailed"`
	UploadedBytes            uint64    `json:"uploadedBytes"`
	UploadsInFlight          int64     `json:"uploadsInFlight"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
