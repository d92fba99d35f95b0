package serializer

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/dcxml"
	"golang.org/x/xerrors"
)

// defines prometheus metrics
var (
	promOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dcxml_operations_total",
		Help: "total number of operations",
	}, []string{"direction"})

	promErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dcxml_errors_total",
		Help: "total number of failed operations",
	}, []string{"direction", "kind"})

	promItems = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dcxml_items_per_operation",
		Help:    "number of nodes visited by an operation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
)

func init() {
	dcxml.PromCollectors = append(dcxml.PromCollectors, promOperations, promErrors, promItems)
}

// observe records the outcome of an operation.
func observe(direction string, items int, err error) {
	promOperations.WithLabelValues(direction).Inc()
	promItems.Observe(float64(items))

	if err != nil {
		promErrors.WithLabelValues(direction, errorKind(err)).Inc()
	}
}

func errorKind(err error) string {
	var e *dcxml.Error
	if xerrors.As(err, &e) {
		return e.Kind.String()
	}

	return "other"
}
