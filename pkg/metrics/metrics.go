package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kyb_gateway"

type KYBMetrics struct {
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	RequestsInFlight     *prometheus.GaugeVec
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	ProviderTimeouts     *prometheus.CounterVec
	OnboardingTasks      *prometheus.CounterVec
	CallbackFailures     prometheus.Counter
}

var (
	defaultMetrics *KYBMetrics
	initOnce       sync.Once
)

// NewMetrics 在 reg 上注册全部指标，测试中传入独立的 Registry
func NewMetrics(reg prometheus.Registerer) *KYBMetrics {
	factory := promauto.With(reg)

	return &KYBMetrics{
		// 网关请求总数
		// Labels: client, status_code
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests handled by the gateway",
			},
			[]string{"client", "status_code"},
		),

		// 网关请求延迟（毫秒）
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_milliseconds",
				Help:      "Gateway request duration in milliseconds",
				Buckets:   []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
			},
			[]string{"client"},
		),

		RequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Current number of requests being processed",
			},
			[]string{"client"},
		),

		// 服务商调用总数
		// Labels: stage (applicant-creation, token-issuance), outcome (success 或错误类别)
		ProviderCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Total number of calls to the verification provider",
			},
			[]string{"stage", "outcome"},
		),

		// 服务商调用延迟（毫秒），上限覆盖默认 15 秒超时
		ProviderCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_milliseconds",
				Help:      "Verification provider call duration in milliseconds",
				Buckets:   []float64{50, 100, 200, 500, 1000, 2000, 5000, 10000, 15000},
			},
			[]string{"stage"},
		),

		ProviderTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_timeouts_total",
				Help:      "Total number of provider calls that hit their deadline",
			},
			[]string{"stage"},
		),

		// 异步开户任务
		// Labels: status (success, failed)
		OnboardingTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "onboarding_tasks_total",
				Help:      "Total number of finished async onboarding tasks",
			},
			[]string{"status"},
		),

		CallbackFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callback_failures_total",
				Help:      "Total number of task callbacks that exhausted their attempts",
			},
		),
	}
}

// InitMetrics 注册到默认 Registry，只执行一次
func InitMetrics() *KYBMetrics {
	initOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func GetMetrics() *KYBMetrics {
	return InitMetrics()
}

// ObserveProviderCall 记录一次服务商调用
func (m *KYBMetrics) ObserveProviderCall(stage, outcome string, duration time.Duration) {
	m.ProviderCallsTotal.WithLabelValues(stage, outcome).Inc()
	m.ProviderCallDuration.WithLabelValues(stage).Observe(float64(duration.Milliseconds()))
	if outcome == "timeout" {
		m.ProviderTimeouts.WithLabelValues(stage).Inc()
	}
}
