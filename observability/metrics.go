package observability

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	poolMetricsOnce sync.Once
	poolRegistry    *PoolMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// query API activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total query API requests segmented by route and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total query API errors segmented by route and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lending",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for query API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of query API requests rejected by throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// PoolMetrics captures the activity of the lending pool state machine.
type PoolMetrics struct {
	operations   *prometheus.CounterVec
	failures     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	liquidations *prometheus.CounterVec
	flashLoans   *prometheus.CounterVec
	rates        *prometheus.GaugeVec
}

// Pool returns the lazily-initialised lending pool metrics registry.
func Pool() *PoolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Pool operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "pool",
				Name:      "failures_total",
				Help:      "Rejected pool operations segmented by error code.",
			}, []string{"operation", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lending",
				Subsystem: "pool",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for pool operations.",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			}, []string{"operation"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "pool",
				Name:      "liquidations_total",
				Help:      "Successful liquidations segmented by collateral and debt asset.",
			}, []string{"collateral", "debt"}),
			flashLoans: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Subsystem: "pool",
				Name:      "flash_loans_total",
				Help:      "Settled flash loan legs segmented by asset and interest rate mode.",
			}, []string{"asset", "mode"}),
			rates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lending",
				Subsystem: "pool",
				Name:      "reserve_rate",
				Help:      "Current annualised reserve rates as fractions.",
			}, []string{"asset", "kind"}),
		}
		prometheus.MustRegister(
			poolRegistry.operations,
			poolRegistry.failures,
			poolRegistry.latency,
			poolRegistry.liquidations,
			poolRegistry.flashLoans,
			poolRegistry.rates,
		)
	})
	return poolRegistry
}

// Observe records one pool operation. An empty code marks success.
func (m *PoolMetrics) Observe(operation string, duration time.Duration, code string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if code != "" {
		outcome = "error"
		m.failures.WithLabelValues(operation, code).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLiquidation counts a successful liquidation.
func (m *PoolMetrics) RecordLiquidation(collateral, debt string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(labelAsset(collateral), labelAsset(debt)).Inc()
}

// RecordFlashLoan counts a settled flash loan leg.
func (m *PoolMetrics) RecordFlashLoan(asset, mode string) {
	if m == nil {
		return
	}
	m.flashLoans.WithLabelValues(labelAsset(asset), mode).Inc()
}

// SetReserveRates publishes the ray rates of a reserve as fractions.
func (m *PoolMetrics) SetReserveRates(asset string, liquidityRate, borrowRate *uint256.Int) {
	if m == nil {
		return
	}
	label := labelAsset(asset)
	m.rates.WithLabelValues(label, "liquidity").Set(rayToFloat(liquidityRate))
	m.rates.WithLabelValues(label, "variable_borrow").Set(rayToFloat(borrowRate))
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(strings.ToLower(asset))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

var rayFloat = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil))

func rayToFloat(value *uint256.Int) float64 {
	if value == nil {
		return 0
	}
	f := new(big.Float).SetInt(value.ToBig())
	out, _ := f.Quo(f, rayFloat).Float64()
	return out
}
