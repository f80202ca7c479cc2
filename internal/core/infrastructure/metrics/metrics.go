// Package metrics 基于 Prometheus 的合约核心指标实现
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	metricsInterface "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/metrics"
)

// PrometheusRecorder 使用独立注册表的指标记录器
type PrometheusRecorder struct {
	registry *prometheus.Registry

	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	gasUsed          prometheus.Histogram
	activeOperations prometheus.Gauge
	snapshots        prometheus.Counter
	versions         prometheus.Counter
	roleChanges      *prometheus.CounterVec
}

var _ metricsInterface.Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder 创建指标记录器，namespace 通常为应用名
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	r := &PrometheusRecorder{registry: registry}

	r.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contract_operations_total",
		Help:      "Contract core operations by type and result",
	}, []string{"op", "result"})

	r.operationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "contract_operation_duration_seconds",
		Help:      "Contract core operation latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	r.gasUsed = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "contract_gas_used",
		Help:      "Gas consumed per successful execution",
		Buckets:   prometheus.ExponentialBuckets(10, 10, 8),
	})

	r.activeOperations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "contract_active_operations",
		Help:      "Operations currently in flight",
	})

	r.snapshots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contract_snapshots_total",
		Help:      "State snapshots taken",
	})

	r.versions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contract_versions_total",
		Help:      "Contract versions registered (deploy and upgrade)",
	})

	r.roleChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contract_role_changes_total",
		Help:      "Role grants, revocations and admin changes",
	}, []string{"action"})

	registry.MustRegister(
		r.operations,
		r.operationLatency,
		r.gasUsed,
		r.activeOperations,
		r.snapshots,
		r.versions,
		r.roleChanges,
	)
	return r
}

// Registry 返回底层注册表（供导出或附加采集器）
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

func (r *PrometheusRecorder) ObserveOperation(op string, result string, elapsed time.Duration) {
	r.operations.WithLabelValues(op, result).Inc()
	r.operationLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (r *PrometheusRecorder) ObserveGas(gasUsed uint64) { r.gasUsed.Observe(float64(gasUsed)) }

func (r *PrometheusRecorder) SetActiveOperations(n int) { r.activeOperations.Set(float64(n)) }

func (r *PrometheusRecorder) IncSnapshots() { r.snapshots.Inc() }

func (r *PrometheusRecorder) IncVersions() { r.versions.Inc() }

func (r *PrometheusRecorder) IncRoleChanges(action string) { r.roleChanges.WithLabelValues(action).Inc() }

// NopRecorder 丢弃所有指标
type NopRecorder struct{}

func (NopRecorder) ObserveOperation(string, string, time.Duration) {}
func (NopRecorder) ObserveGas(uint64)                              {}
func (NopRecorder) SetActiveOperations(int)                        {}
func (NopRecorder) IncSnapshots()                                  {}
func (NopRecorder) IncVersions()                                   {}
func (NopRecorder) IncRoleChanges(string)                          {}

var _ metricsInterface.Recorder = NopRecorder{}
