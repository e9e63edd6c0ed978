package alloc

import (
	"sync"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	allocatorPrometheusMetrics sync.Once

	allocatorOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "valuekit",
			Subsystem: "alloc",
			Name:      "operations_total",
			Help:      "Number of Alloc() and Free() calls, by allocator name, operation and outcome.",
		},
		[]string{"name", "operation", "outcome"})
	allocatorBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "valuekit",
			Subsystem: "alloc",
			Name:      "bytes_total",
			Help:      "Payload bytes passed through successful Alloc() and Free() calls.",
		},
		[]string{"name", "operation"})
	allocatorLiveBlocks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "valuekit",
			Subsystem: "alloc",
			Name:      "live_blocks",
			Help:      "Blocks allocated and not yet freed.",
		},
		[]string{"name"})
)

// MetricsAllocator wraps another Allocator and exports its activity as Prometheus
// metrics labeled with a caller-chosen name.
type MetricsAllocator struct {
	next Allocator

	allocSuccess prometheus.Counter
	allocFailure prometheus.Counter
	freeSuccess  prometheus.Counter
	freeFailure  prometheus.Counter
	allocBytes   prometheus.Counter
	freeBytes    prometheus.Counter
	live         prometheus.Gauge
}

// NewMetrics wraps next. Metrics are registered with the default registry on first use.
func NewMetrics(next Allocator, name string) *MetricsAllocator {
	allocatorPrometheusMetrics.Do(func() {
		prometheus.MustRegister(allocatorOperationsTotal)
		prometheus.MustRegister(allocatorBytesTotal)
		prometheus.MustRegister(allocatorLiveBlocks)
	})
	if next == nil {
		next = Default
	}

	return &MetricsAllocator{
		next:         next,
		allocSuccess: allocatorOperationsTotal.WithLabelValues(name, "alloc", "success"),
		allocFailure: allocatorOperationsTotal.WithLabelValues(name, "alloc", "failure"),
		freeSuccess:  allocatorOperationsTotal.WithLabelValues(name, "free", "success"),
		freeFailure:  allocatorOperationsTotal.WithLabelValues(name, "free", "failure"),
		allocBytes:   allocatorBytesTotal.WithLabelValues(name, "alloc"),
		freeBytes:    allocatorBytesTotal.WithLabelValues(name, "free"),
		live:         allocatorLiveBlocks.WithLabelValues(name),
	}
}

// Alloc allocates through the wrapped allocator.
func (ma *MetricsAllocator) Alloc(l Layout) (unsafe.Pointer, error) {
	p, err := ma.next.Alloc(l)
	if err != nil {
		ma.allocFailure.Inc()
		return nil, err
	}
	ma.allocSuccess.Inc()
	ma.allocBytes.Add(float64(l.Size))
	ma.live.Inc()
	return p, nil
}

// Free frees through the wrapped allocator.
func (ma *MetricsAllocator) Free(p unsafe.Pointer, l Layout) error {
	if err := ma.next.Free(p, l); err != nil {
		ma.freeFailure.Inc()
		return err
	}
	ma.freeSuccess.Inc()
	ma.freeBytes.Add(float64(l.Size))
	ma.live.Dec()
	return nil
}

// Compile-time interface check
var _ Allocator = (*MetricsAllocator)(nil)
