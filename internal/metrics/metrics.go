package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordsWrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audittrail_records_written_total",
		Help: "Total number of audit records persisted, by action",
	}, []string{"action"})
	recordFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audittrail_record_failures_total",
		Help: "Total number of audit record writes that failed",
	})
	capturesSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audittrail_captures_skipped_total",
		Help: "Total number of intercepted requests skipped (non-mutating or non-2xx)",
	})
	identityFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audittrail_identity_fallbacks_total",
		Help: "Total number of identity resolutions served by the deterministic fallback",
	})
	recordsStoredGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audittrail_records_stored",
		Help: "Number of audit records currently in the store",
	})
	identityMappingsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audittrail_identity_mappings",
		Help: "Number of known username to actor id mappings",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		recordsWrittenTotal,
		recordFailuresTotal,
		capturesSkippedTotal,
		identityFallbacksTotal,
		recordsStoredGauge,
		identityMappingsGauge,
	)
}

// IncRecordWritten increments the persisted-records counter for an action.
func IncRecordWritten(action string) { recordsWrittenTotal.WithLabelValues(action).Inc() }

// IncRecordFailure increments the failed-write counter.
func IncRecordFailure() { recordFailuresTotal.Inc() }

// IncCaptureSkipped increments the skipped-captures counter.
func IncCaptureSkipped() { capturesSkippedTotal.Inc() }

// IncIdentityFallback increments the fallback-resolution counter.
func IncIdentityFallback() { identityFallbacksTotal.Inc() }

// SetRecordsStored updates the stored-records gauge from the rollup job.
func SetRecordsStored(n int64) { recordsStoredGauge.Set(float64(n)) }

// SetIdentityMappings updates the known-mappings gauge from the rollup job.
func SetIdentityMappings(n int64) { identityMappingsGauge.Set(float64(n)) }
