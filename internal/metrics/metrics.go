package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkflowMetrics counts workflow outcomes, labelled by result
// ("ok" or an error class).
type WorkflowMetrics struct {
	Checkouts     *prometheus.CounterVec
	Cancellations *prometheus.CounterVec
	Reorders      *prometheus.CounterVec
	ReorderSkips  prometheus.Counter
}

func NewWorkflowMetrics() *WorkflowMetrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "climastore",
		Subsystem: "orders",
		Name:      "checkouts_total",
		Help:      "Total checkout attempts by result.",
	}, []string{"result"})
	cancellations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "climastore",
		Subsystem: "orders",
		Name:      "cancellations_total",
		Help:      "Total cancellation attempts by result.",
	}, []string{"result"})
	reorders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "climastore",
		Subsystem: "orders",
		Name:      "reorders_total",
		Help:      "Total reorder attempts by result.",
	}, []string{"result"})
	reorderSkips := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "climastore",
		Subsystem: "orders",
		Name:      "reorder_items_skipped_total",
		Help:      "Total reorder line items skipped or clamped.",
	})

	prometheus.MustRegister(checkouts, cancellations, reorders, reorderSkips)
	return &WorkflowMetrics{
		Checkouts:     checkouts,
		Cancellations: cancellations,
		Reorders:      reorders,
		ReorderSkips:  reorderSkips,
	}
}

// Nil receivers are allowed on all observers so services can run without
// metrics in tests.

func (m *WorkflowMetrics) ObserveCheckout(err error) {
	if m != nil {
		m.Checkouts.WithLabelValues(result(err)).Inc()
	}
}

func (m *WorkflowMetrics) ObserveCancellation(err error) {
	if m != nil {
		m.Cancellations.WithLabelValues(result(err)).Inc()
	}
}

func (m *WorkflowMetrics) ObserveReorder(err error) {
	if m != nil {
		m.Reorders.WithLabelValues(result(err)).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// AddSkips records n skipped reorder lines.
func (m *WorkflowMetrics) AddSkips(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ReorderSkips.Add(float64(n))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
