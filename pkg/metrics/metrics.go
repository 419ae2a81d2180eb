package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds performance metrics for the aggregation service
type Metrics struct {
	// Request metrics
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`

	// Response time metrics
	AverageResponseTime time.Duration `json:"average_response_time"`
	MinResponseTime     time.Duration `json:"min_response_time"`
	MaxResponseTime     time.Duration `json:"max_response_time"`

	// Cache metrics
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	// Upstream RPC metrics
	RPCCalls       int64         `json:"rpc_calls"`
	RPCFailures    int64         `json:"rpc_failures"`
	RPCRetries     int64         `json:"rpc_retries"`
	AverageRPCTime time.Duration `json:"average_rpc_time"`

	// Engine metrics
	ItemsDropped    int64 `json:"items_dropped"`
	QuotaRejections int64 `json:"quota_rejections"`
	ActiveRequests  int64 `json:"active_requests"`

	// Internal fields for calculations
	totalResponseTime time.Duration
	totalRPCTime      time.Duration
	mutex             sync.RWMutex
}

// Collector provides thread-safe metrics collection
type Collector struct {
	metrics   *Metrics
	startTime time.Time
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		metrics: &Metrics{
			MinResponseTime: time.Duration(^uint64(0) >> 1), // Max duration
		},
		startTime: time.Now(),
	}
}

// RecordRequest records a new request
func (mc *Collector) RecordRequest() {
	atomic.AddInt64(&mc.metrics.TotalRequests, 1)
	atomic.AddInt64(&mc.metrics.ActiveRequests, 1)
}

// RecordRequestComplete records request completion
func (mc *Collector) RecordRequestComplete(duration time.Duration, success bool) {
	atomic.AddInt64(&mc.metrics.ActiveRequests, -1)

	if success {
		atomic.AddInt64(&mc.metrics.SuccessfulRequests, 1)
	} else {
		atomic.AddInt64(&mc.metrics.FailedRequests, 1)
	}

	mc.metrics.mutex.Lock()
	defer mc.metrics.mutex.Unlock()

	mc.metrics.totalResponseTime += duration

	if duration < mc.metrics.MinResponseTime {
		mc.metrics.MinResponseTime = duration
	}
	if duration > mc.metrics.MaxResponseTime {
		mc.metrics.MaxResponseTime = duration
	}

	totalRequests := atomic.LoadInt64(&mc.metrics.TotalRequests)
	if totalRequests > 0 {
		mc.metrics.AverageResponseTime = mc.metrics.totalResponseTime / time.Duration(totalRequests)
	}
}

// RecordCacheHit records a cache hit
func (mc *Collector) RecordCacheHit() {
	atomic.AddInt64(&mc.metrics.CacheHits, 1)
}

// RecordCacheMiss records a cache miss
func (mc *Collector) RecordCacheMiss() {
	atomic.AddInt64(&mc.metrics.CacheMisses, 1)
}

// RecordRPCCall records an upstream RPC call
func (mc *Collector) RecordRPCCall(duration time.Duration, success bool) {
	atomic.AddInt64(&mc.metrics.RPCCalls, 1)

	if !success {
		atomic.AddInt64(&mc.metrics.RPCFailures, 1)
	}

	mc.metrics.mutex.Lock()
	defer mc.metrics.mutex.Unlock()

	mc.metrics.totalRPCTime += duration

	totalRPCCalls := atomic.LoadInt64(&mc.metrics.RPCCalls)
	if totalRPCCalls > 0 {
		mc.metrics.AverageRPCTime = mc.metrics.totalRPCTime / time.Duration(totalRPCCalls)
	}
}

// RecordRPCRetry records a retried upstream call after a rate-limit response
func (mc *Collector) RecordRPCRetry() {
	atomic.AddInt64(&mc.metrics.RPCRetries, 1)
}

// RecordItemDropped records a transfer item abandoned after upstream failure
func (mc *Collector) RecordItemDropped() {
	atomic.AddInt64(&mc.metrics.ItemsDropped, 1)
}

// RecordQuotaRejection records a request rejected by the daily address quota
func (mc *Collector) RecordQuotaRejection() {
	atomic.AddInt64(&mc.metrics.QuotaRejections, 1)
}

// GetMetrics returns a copy of current metrics
func (mc *Collector) GetMetrics() *Metrics {
	mc.metrics.mutex.RLock()
	defer mc.metrics.mutex.RUnlock()

	return &Metrics{
		TotalRequests:       atomic.LoadInt64(&mc.metrics.TotalRequests),
		SuccessfulRequests:  atomic.LoadInt64(&mc.metrics.SuccessfulRequests),
		FailedRequests:      atomic.LoadInt64(&mc.metrics.FailedRequests),
		AverageResponseTime: mc.metrics.AverageResponseTime,
		MinResponseTime:     mc.metrics.MinResponseTime,
		MaxResponseTime:     mc.metrics.MaxResponseTime,
		CacheHits:           atomic.LoadInt64(&mc.metrics.CacheHits),
		CacheMisses:         atomic.LoadInt64(&mc.metrics.CacheMisses),
		RPCCalls:            atomic.LoadInt64(&mc.metrics.RPCCalls),
		RPCFailures:         atomic.LoadInt64(&mc.metrics.RPCFailures),
		RPCRetries:          atomic.LoadInt64(&mc.metrics.RPCRetries),
		AverageRPCTime:      mc.metrics.AverageRPCTime,
		ItemsDropped:        atomic.LoadInt64(&mc.metrics.ItemsDropped),
		QuotaRejections:     atomic.LoadInt64(&mc.metrics.QuotaRejections),
		ActiveRequests:      atomic.LoadInt64(&mc.metrics.ActiveRequests),
	}
}

// GetUptime returns the uptime since metrics collection started
func (mc *Collector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// Reset resets all metrics
func (mc *Collector) Reset() {
	mc.metrics.mutex.Lock()
	defer mc.metrics.mutex.Unlock()

	atomic.StoreInt64(&mc.metrics.TotalRequests, 0)
	atomic.StoreInt64(&mc.metrics.SuccessfulRequests, 0)
	atomic.StoreInt64(&mc.metrics.FailedRequests, 0)
	atomic.StoreInt64(&mc.metrics.CacheHits, 0)
	atomic.StoreInt64(&mc.metrics.CacheMisses, 0)
	atomic.StoreInt64(&mc.metrics.RPCCalls, 0)
	atomic.StoreInt64(&mc.metrics.RPCFailures, 0)
	atomic.StoreInt64(&mc.metrics.RPCRetries, 0)
	atomic.StoreInt64(&mc.metrics.ItemsDropped, 0)
	atomic.StoreInt64(&mc.metrics.QuotaRejections, 0)
	atomic.StoreInt64(&mc.metrics.ActiveRequests, 0)

	mc.metrics.AverageResponseTime = 0
	mc.metrics.MinResponseTime = time.Duration(^uint64(0) >> 1)
	mc.metrics.MaxResponseTime = 0
	mc.metrics.AverageRPCTime = 0
	mc.metrics.totalResponseTime = 0
	mc.metrics.totalRPCTime = 0

	mc.startTime = time.Now()
}

// GetCacheHitRatio returns the cache hit ratio as a percentage
func (mc *Collector) GetCacheHitRatio() float64 {
	hits := atomic.LoadInt64(&mc.metrics.CacheHits)
	misses := atomic.LoadInt64(&mc.metrics.CacheMisses)
	total := hits + misses

	if total == 0 {
		return 0.0
	}

	return float64(hits) / float64(total) * 100.0
}

// GetSuccessRate returns the success rate as a percentage
func (mc *Collector) GetSuccessRate() float64 {
	successful := atomic.LoadInt64(&mc.metrics.SuccessfulRequests)
	total := atomic.LoadInt64(&mc.metrics.TotalRequests)

	if total == 0 {
		return 0.0
	}

	return float64(successful) / float64(total) * 100.0
}
