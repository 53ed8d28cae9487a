package handler

import (
	"fmt"
	"net/http"

	"github.com/schedly/schedly/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "# TYPE schedly_registrations_total counter\n")
	writeMetric(w, "schedly_registrations_total{outcome=\"created\"} %d\n", snap.UsersRegistered)
	writeMetric(w, "schedly_registrations_total{outcome=\"username_taken\"} %d\n", snap.UsernameConflicts)
	writeMetric(w, "schedly_registrations_total{outcome=\"invalid\"} %d\n", snap.RegistrationsInvalid)
	writeMetric(w, "schedly_registrations_total{outcome=\"rate_limited\"} %d\n", snap.RegistrationsLimited)

	writeMetric(w, "# TYPE schedly_register_duration_seconds summary\n")
	writeMetric(w, "schedly_register_duration_seconds_count %d\n", snap.RegisterDurationCount)
	writeMetric(w, "schedly_register_duration_seconds_sum %.6f\n", float64(snap.RegisterDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
