package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AnalysesTotal      uint64
	AnalysesRunning    uint64
	AnalysesFailed     uint64
	ExtractionsTotal   uint64
	ExtractionsFailed  uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests()          { atomic.AddUint64(&globalMetrics.RequestsTotal, 1) }
func IncrementInProgress()        { atomic.AddUint64(&globalMetrics.RequestsInProgress, 1) }
func DecrementInProgress()        { atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0)) }
func IncrementSuccess()           { atomic.AddUint64(&globalMetrics.RequestsSuccess, 1) }
func IncrementFailed()            { atomic.AddUint64(&globalMetrics.RequestsFailed, 1) }
func IncrementAnalyses()          { atomic.AddUint64(&globalMetrics.AnalysesTotal, 1) }
func IncrementAnalysesRunning()   { atomic.AddUint64(&globalMetrics.AnalysesRunning, 1) }
func DecrementAnalysesRunning()   { atomic.AddUint64(&globalMetrics.AnalysesRunning, ^uint64(0)) }
func IncrementAnalysesFailed()    { atomic.AddUint64(&globalMetrics.AnalysesFailed, 1) }
func IncrementExtractions()       { atomic.AddUint64(&globalMetrics.ExtractionsTotal, 1) }
func IncrementExtractionsFailed() { atomic.AddUint64(&globalMetrics.ExtractionsFailed, 1) }

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"analyses_total":       atomic.LoadUint64(&globalMetrics.AnalysesTotal),
		"analyses_running":     atomic.LoadUint64(&globalMetrics.AnalysesRunning),
		"analyses_failed":      atomic.LoadUint64(&globalMetrics.AnalysesFailed),
		"extractions_total":    atomic.LoadUint64(&globalMetrics.ExtractionsTotal),
		"extractions_failed":   atomic.LoadUint64(&globalMetrics.ExtractionsFailed),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &statusRecorder{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.status >= 200 && wrapped.status < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetMetrics())
}
