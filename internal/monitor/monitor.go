package monitor

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

const namespace = "tiktok_scraper"

// Metrics represents all the application metrics
type Metrics struct {
	// Traversal metrics
	PagesFetched      *prometheus.CounterVec
	FetchErrors       *prometheus.CounterVec
	Traversals        *prometheus.CounterVec
	CommentsCollected prometheus.Counter

	// Extraction metrics
	Extractions *prometheus.CounterVec

	// Download metrics
	DownloadsTotal   *prometheus.CounterVec
	DownloadDuration prometheus.Histogram
	DownloadSize     prometheus.Histogram
	ActiveDownloads  prometheus.Gauge

	// HTTP server metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// System metrics
	Goroutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge
}

// NewMetrics registers the application metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_fetched_total",
				Help:      "Comment and reply pages fetched",
			},
			[]string{"kind"},
		),

		FetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Failed comment and reply page fetches",
			},
			[]string{"kind"},
		),

		Traversals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "traversals_total",
				Help:      "Finished comment traversals by status",
			},
			[]string{"status"},
		),

		CommentsCollected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_collected_total",
			Help:      "Comments and replies returned by traversals",
		}),

		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Record extractions by kind and result",
			},
			[]string{"kind", "result"},
		),

		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloads_total",
				Help:      "Video downloads by result",
			},
			[]string{"result"},
		),

		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Time spent downloading videos",
			Buckets:   prometheus.DefBuckets,
		}),

		DownloadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_size_bytes",
			Help:      "Size of downloaded videos",
			Buckets:   []float64{1e5, 1e6, 1e7, 1e8, 1e9}, // 100KB to 1GB
		}),

		ActiveDownloads: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_downloads",
			Help:      "Number of active downloads",
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests served",
			},
			[]string{"method", "route", "status"},
		),

		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Time spent serving API requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		Goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Number of goroutines",
		}),

		MemoryUsage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_usage_bytes",
			Help:      "Memory usage in bytes",
		}),
	}
}

// Monitor records scraper activity and periodically samples the runtime
type Monitor struct {
	metrics  *Metrics
	logger   zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor whose metrics are registered with reg
func NewMonitor(reg prometheus.Registerer) *Monitor {
	return &Monitor{
		metrics:  NewMetrics(reg),
		logger:   zerolog.Nop(),
		stopChan: make(chan struct{}),
	}
}

// SetLogger sets the logger
func (m *Monitor) SetLogger(logger zerolog.Logger) {
	m.logger = logger.With().Str("component", "monitor").Logger()
}

// Start starts sampling system metrics
func (m *Monitor) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	m.sample()

	m.wg.Add(1)
	go m.collectSystemMetrics(interval)

	m.logger.Info().Dur("interval", interval).Msg("Monitoring system started")
}

// Stop stops the sampler. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
		m.logger.Info().Msg("Monitoring system stopped")
	})
}

func (m *Monitor) collectSystemMetrics(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) sample() {
	m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.metrics.MemoryUsage.Set(float64(memStats.Alloc))
}

// PageFetched counts a fetched comment or reply page
func (m *Monitor) PageFetched(kind string, comments int) {
	m.metrics.PagesFetched.WithLabelValues(kind).Inc()
}

// FetchFailed counts a failed page fetch
func (m *Monitor) FetchFailed(kind string, err error) {
	m.metrics.FetchErrors.WithLabelValues(kind).Inc()
	m.logger.Debug().Err(err).Str("kind", kind).Msg("Page fetch failed")
}

// TraversalFinished counts a finished traversal
func (m *Monitor) TraversalFinished(status models.ThreadStatus, comments int) {
	m.metrics.Traversals.WithLabelValues(string(status)).Inc()
	m.metrics.CommentsCollected.Add(float64(comments))
}

// RecordExtraction counts a video or user extraction
func (m *Monitor) RecordExtraction(kind models.RecordKind, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.metrics.Extractions.WithLabelValues(string(kind), result).Inc()
}

// RecordDownloadStart records the start of a download
func (m *Monitor) RecordDownloadStart() {
	m.metrics.ActiveDownloads.Inc()
}

// RecordDownloadSuccess records a successful download
func (m *Monitor) RecordDownloadSuccess(duration time.Duration, size int64) {
	m.metrics.DownloadsTotal.WithLabelValues("success").Inc()
	m.metrics.DownloadDuration.Observe(duration.Seconds())
	m.metrics.DownloadSize.Observe(float64(size))
	m.metrics.ActiveDownloads.Dec()
}

// RecordDownloadFailure records a failed download
func (m *Monitor) RecordDownloadFailure(duration time.Duration) {
	m.metrics.DownloadsTotal.WithLabelValues("error").Inc()
	m.metrics.DownloadDuration.Observe(duration.Seconds())
	m.metrics.ActiveDownloads.Dec()
}

// RecordHTTPRequest records a served API request
func (m *Monitor) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.metrics.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.metrics.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// GetMetrics returns all metrics
func (m *Monitor) GetMetrics() *Metrics {
	return m.metrics
}

// HealthCheck reports runtime statistics
func (m *Monitor) HealthCheck() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"goroutines":   runtime.NumGoroutine(),
		"memory_usage": memStats.Alloc,
		"memory_sys":   memStats.Sys,
		"gc_cycles":    memStats.NumGC,
	}
}
