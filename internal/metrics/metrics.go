package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 单元处理结果
const (
	ResultSummarized = "summarized"
	ResultNotFound   = "not_found"
	ResultNoMessages = "no_messages"
	ResultFailed     = "failed"
)

// Metrics 单次批处理运行的指标，写入 node_exporter textfile 目录
type Metrics struct {
	registry *prometheus.Registry

	Units          *prometheus.CounterVec
	LLMDuration    *prometheus.HistogramVec
	Sections       prometheus.Gauge
	LastRunSuccess prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "digest_units_total",
			Help: "按频道统计的 (频道, 用户) 处理结果",
		}, []string{"channel", "result"}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM 请求耗时",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"model", "status"}),
		Sections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "digest_sections",
			Help: "本次写入摘要的小节数",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "digest_last_success_timestamp_seconds",
			Help: "最近一次成功写出摘要的时间",
		}),
	}
	m.registry.MustRegister(m.Units, m.LLMDuration, m.Sections, m.LastRunSuccess)
	return m
}

// ObserveUnit 记录一个 (频道, 用户) 的处理结果
func (m *Metrics) ObserveUnit(channel, result string) {
	m.Units.WithLabelValues(channel, result).Inc()
}

// ObserveLLM 与 llm.Observer 签名一致
func (m *Metrics) ObserveLLM(model string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LLMDuration.WithLabelValues(model, status).Observe(elapsed.Seconds())
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile 原子写出 textfile，path 为空时跳过
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
