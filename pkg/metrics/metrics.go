// Package metrics 提供 Prometheus 指标集合
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aml"

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 交易监控结果计数（status: completed/failed/skipped）
	TransactionsMonitored *prometheus.CounterVec
	// 监控各阶段耗时（stage: rules/patterns/screening）
	StageDuration *prometheus.HistogramVec
	// 生成告警计数
	AlertsCreated *prometheus.CounterVec
	// 告警升级计数（reason: manual/sla）
	AlertsEscalated *prometheus.CounterVec
	// 名单命中计数
	WatchlistMatches *prometheus.CounterVec
	// 风险等级变更计数
	RiskLevelChanges *prometheus.CounterVec
	// 案件与报告
	CasesOpened   prometheus.Counter
	SARsSubmitted *prometheus.CounterVec
	// 通知推送
	NotificationsSent *prometheus.CounterVec
	WSConnections     prometheus.Gauge
	// 消息消费
	MessagesConsumed *prometheus.CounterVec
}

// New 创建指标实例，使用独立 registry
func New(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Total HTTP requests", ConstLabels: labels,
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help: "HTTP request duration in seconds", ConstLabels: labels,
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		TransactionsMonitored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transactions_monitored_total",
			Help: "Transactions processed by the monitoring pipeline", ConstLabels: labels,
		}, []string{"status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "monitoring_stage_duration_seconds",
			Help: "Monitoring stage duration in seconds", ConstLabels: labels,
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"stage"}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_created_total",
			Help: "Transaction alerts created", ConstLabels: labels,
		}, []string{"alert_type", "severity"}),
		AlertsEscalated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_escalated_total",
			Help: "Transaction alerts escalated", ConstLabels: labels,
		}, []string{"reason"}),
		WatchlistMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "watchlist_matches_total",
			Help: "Watchlist matches recorded", ConstLabels: labels,
		}, []string{"source_type"}),
		RiskLevelChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "risk_level_changes_total",
			Help: "Customer risk level transitions", ConstLabels: labels,
		}, []string{"level"}),
		CasesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cases_opened_total",
			Help: "Investigation cases opened", ConstLabels: labels,
		}),
		SARsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sars_submitted_total",
			Help: "Suspicious activity reports submitted", ConstLabels: labels,
		}, []string{"result"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_sent_total",
			Help: "Notifications delivered", ConstLabels: labels,
		}, []string{"channel"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ws_connections",
			Help: "Active websocket connections", ConstLabels: labels,
		}),
		MessagesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_consumed_total",
			Help: "Kafka messages consumed", ConstLabels: labels,
		}, []string{"topic", "result"}),
	}
	return m
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TransactionsMonitored,
		m.StageDuration,
		m.AlertsCreated,
		m.AlertsEscalated,
		m.WatchlistMatches,
		m.RiskLevelChanges,
		m.CasesOpened,
		m.SARsSubmitted,
		m.NotificationsSent,
		m.WSConnections,
		m.MessagesConsumed,
		prometheus.NewGoCollector(),
	}
	var errs []error
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handler 指标暴露端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveStage 记录监控阶段耗时
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveMessage 记录一条消息的消费结果，m 为 nil 时忽略
func (m *Metrics) ObserveMessage(topic, result string) {
	if m == nil {
		return
	}
	m.MessagesConsumed.WithLabelValues(topic, result).Inc()
}
