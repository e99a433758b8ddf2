package store

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Write outcomes used as the outcome label.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeAmbiguous   = "ambiguous"
	OutcomeEmpty       = "empty"
	OutcomeNoTable     = "no_table"
	OutcomeUnconfirmed = "unconfirmed"
	OutcomeError       = "error"
)

// Metrics counts writes, schema mismatches and migrations. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	writes     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	mismatches *prometheus.CounterVec
	migrated   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		writes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moorlog",
			Name:      "writes_total",
			Help:      "Record writes by table, operation and outcome.",
		}, []string{"table", "op", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "moorlog",
			Name:      "write_duration_seconds",
			Help:      "Duration of record writes including read-back.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"table", "op"}),
		mismatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moorlog",
			Name:      "schema_mismatches_total",
			Help:      "Present logical fields with no live candidate column.",
		}, []string{"table", "field"}),
		migrated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moorlog",
			Name:      "migrated_columns_total",
			Help:      "Columns added or back-filled by the migrator.",
		}, []string{"table", "action"}),
	}
}

// ObserveWrite records one write attempt.
func (m *Metrics) ObserveWrite(table, op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(table, op, Outcome(err)).Inc()
	m.duration.WithLabelValues(table, op).Observe(elapsed.Seconds())
}

// SchemaMismatch records a field that could not be persisted.
func (m *Metrics) SchemaMismatch(table, field string) {
	if m == nil {
		return
	}
	m.mismatches.WithLabelValues(table, field).Inc()
}

// Migrated records n columns added or copied.
func (m *Metrics) Migrated(table, action string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.migrated.WithLabelValues(table, action).Add(float64(n))
}

// Outcome classifies a write error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnconfirmed):
		return OutcomeUnconfirmed
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrAmbiguousUpdate):
		return OutcomeAmbiguous
	case errors.Is(err, ErrNothingToWrite):
		return OutcomeEmpty
	case errors.Is(err, ErrTableNotFound):
		return OutcomeNoTable
	default:
		return OutcomeError
	}
}
