package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 汇总周期划分、周期关闭与统计重算相关的指标。
// 所有方法对 nil 接收者安全，未启用指标时可直接传 nil。
type Metrics struct {
	registry          *prometheus.Registry
	assignments       *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	siteMean          prometheus.Gauge
	siteStdDev        prometheus.Gauge
	sitePeriods       prometheus.Gauge
	snapshotHits      prometheus.Counter
	snapshotMisses    prometheus.Counter
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New 创建指标并注册到独立的 Registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trashinator_assignments_total",
			Help: "Volume records assigned to a tracking period, by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trashinator_period_transitions_total",
			Help: "Tracking periods closed by the stale-period sweep, by resulting status.",
		}, []string{"status"}),
		siteMean: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trashinator_site_litres_per_person_per_week",
			Help: "Last recomputed sitewide mean litres per person per week.",
		}),
		siteStdDev: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trashinator_site_litres_stddev",
			Help: "Last recomputed sitewide standard deviation of litres per person per week.",
		}),
		sitePeriods: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trashinator_site_periods",
			Help: "Tracking periods included in the last sitewide recompute.",
		}),
		snapshotHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trashinator_stats_cache_hits_total",
			Help: "Site statistics snapshot reads served from the cache.",
		}),
		snapshotMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trashinator_stats_cache_misses_total",
			Help: "Site statistics snapshot reads that fell back to the database.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.assignments,
		m.transitions,
		m.siteMean,
		m.siteStdDev,
		m.sitePeriods,
		m.snapshotHits,
		m.snapshotMisses,
		m.httpRequestsTotal,
		m.httpDuration,
	)

	return m
}

// Registry 暴露底层 Registry，便于测试读取
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware 统计每个路由的请求数与耗时
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Assigned 记录一次周期归属决策
func (m *Metrics) Assigned(outcome string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(outcome).Inc()
}

// Closed 记录一次过期周期扫描的结果
func (m *Metrics) Closed(completed, voided int64) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues("COMPLETE").Add(float64(completed))
	m.transitions.WithLabelValues("VOID").Add(float64(voided))
}

// Recomputed 更新全站统计快照的指标
func (m *Metrics) Recomputed(mean, stddev float64, periods int) {
	if m == nil {
		return
	}
	m.siteMean.Set(mean)
	m.siteStdDev.Set(stddev)
	m.sitePeriods.Set(float64(periods))
}

// SnapshotHit 记录一次缓存命中
func (m *Metrics) SnapshotHit() {
	if m == nil {
		return
	}
	m.snapshotHits.Inc()
}

// SnapshotMiss 记录一次缓存未命中
func (m *Metrics) SnapshotMiss() {
	if m == nil {
		return
	}
	m.snapshotMisses.Inc()
}
