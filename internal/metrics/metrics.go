package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
type Metrics struct {
	// 批量检测指标
	BatchChecksTotal  *prometheus.CounterVec
	BatchCheckTargets *prometheus.CounterVec
	BatchDuration     *prometheus.HistogramVec

	// 单项排名检测指标
	RankChecksTotal   *prometheus.CounterVec
	RankCheckDuration *prometheus.HistogramVec
	RankChangesTotal  *prometheus.CounterVec

	// 市场调研指标
	ResearchRunsTotal   *prometheus.CounterVec
	ResearchRunDuration prometheus.Histogram

	// 调度器状态指标
	SchedulerRunning prometheus.Gauge
	ActiveCrawls     prometheus.Gauge
	StartTime        prometheus.Gauge
	Uptime           prometheus.Gauge

	// 错误指标
	ErrorTotal *prometheus.CounterVec

	// 保留期清理指标
	PrunedRowsTotal *prometheus.CounterVec
}

// NewMetrics 创建指标收集器
func NewMetrics() *Metrics {
	m := &Metrics{
		BatchChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankpulse_batch_checks_total",
				Help: "Total number of batch ranking checks",
			},
			[]string{"kind"},
		),
		BatchCheckTargets: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankpulse_batch_check_targets_total",
				Help: "Total number of targets processed in batch checks",
			},
			[]string{"kind", "status"},
		),
		BatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankpulse_batch_duration_seconds",
				Help:    "Batch ranking check duration in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"kind"},
		),

		RankChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankpulse_rank_checks_total",
				Help: "Total number of single keyword ranking checks",
			},
			[]string{"country", "status"},
		),
		RankCheckDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankpulse_rank_check_duration_seconds",
				Help:    "Single keyword ranking check duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"country"},
		),
		RankChangesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankpulse_rank_changes_total",
				Help: "Total number of significant rank changes detected",
			},
			[]string{"change_type"},
		),

		ResearchRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankpulse_research_runs_total",
				Help: "Total number of market research runs",
			},
			[]string{"status"},
		),
		ResearchRunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rankpulse_research_run_duration_seconds",
				Help:    "Market research run duration in seconds",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1800},
			},
		),

		SchedulerRunning: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankpulse_scheduler_running",
				Help: "Whether the ranking scheduler is running (1 = running)",
			},
		),
		ActiveCrawls: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankpulse_active_crawls",
				Help: "Number of crawl jobs currently in flight",
			},
		),
		StartTime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankpulse_start_time_seconds",
				Help: "Process start time in unix seconds",
			},
		),
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankpulse_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),

		ErrorTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankpulse_errors_total",
				Help: "Total number of errors by component",
			},
			[]string{"component"},
		),

		PrunedRowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankpulse_pruned_rows_total",
				Help: "Total number of rows removed by retention cleanup",
			},
			[]string{"table"},
		),
	}

	start := time.Now()
	m.StartTime.Set(float64(start.Unix()))
	go m.updateUptime(start)

	return m
}

func (m *Metrics) updateUptime(start time.Time) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(start).Seconds())
	}
}

// RecordBatchCheck 记录一次批量检测
func (m *Metrics) RecordBatchCheck(kind string, success, failed int, duration time.Duration) {
	m.BatchChecksTotal.WithLabelValues(kind).Inc()
	m.BatchCheckTargets.WithLabelValues(kind, "success").Add(float64(success))
	m.BatchCheckTargets.WithLabelValues(kind, "failed").Add(float64(failed))
	m.BatchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRankCheck 记录一次单项检测
func (m *Metrics) RecordRankCheck(country string, ok bool, duration time.Duration) {
	status := "success"
	if !ok {
		status = "failed"
	}
	m.RankChecksTotal.WithLabelValues(country, status).Inc()
	m.RankCheckDuration.WithLabelValues(country).Observe(duration.Seconds())
}

// RecordRankChange 记录一次显著排名变化
func (m *Metrics) RecordRankChange(changeType string) {
	m.RankChangesTotal.WithLabelValues(changeType).Inc()
}

// RecordResearchRun 记录一次市场调研执行
func (m *Metrics) RecordResearchRun(status string, duration time.Duration) {
	m.ResearchRunsTotal.WithLabelValues(status).Inc()
	m.ResearchRunDuration.Observe(duration.Seconds())
}

// RecordError 记录组件错误
func (m *Metrics) RecordError(component string) {
	m.ErrorTotal.WithLabelValues(component).Inc()
}

// RecordPruned 记录保留期清理删除的行数
func (m *Metrics) RecordPruned(table string, rows int64) {
	m.PrunedRowsTotal.WithLabelValues(table).Add(float64(rows))
}

// Handler 返回 /metrics 的 HTTP 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
