package metrics

import (
	"time"

	"github.com/feedlens/feedlens/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Collection metrics
	SessionsTotal       = "app_sessions_total"
	ItemsCollectedTotal = "app_items_collected_total"

	// Admission metrics
	AdmissionWaitDuration = "app_admission_wait_duration_ms"
	BreakerOpensTotal     = "app_breaker_opens_total"
	RequestsTotal         = "app_feed_requests_total"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordSession records a finished collection session by outcome.
func RecordSession(subject string, completed bool) {
	status := "completed"
	if !completed {
		status = "failed"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SessionsTotal,
			1,
			map[string]string{
				"subject": subject,
				"status":  status,
			},
		)
	}
}

// RecordItemsCollected adds to the collected-items counter for a subject.
func RecordItemsCollected(subject string, count int) {
	if count <= 0 {
		return
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ItemsCollectedTotal,
			float64(count),
			map[string]string{"subject": subject},
		)
	}
}

// RecordAdmissionWait records how long a request waited for permission.
func RecordAdmissionWait(profile string, waited time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			AdmissionWaitDuration,
			waited,
			map[string]string{"profile": profile},
		)
	}
}

// RecordBreakerOpen counts a circuit breaker trip.
func RecordBreakerOpen(profile string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			BreakerOpensTotal,
			1,
			map[string]string{"profile": profile},
		)
	}
}

// RecordFeedRequest records one upstream feed request with its outcome.
func RecordFeedRequest(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RequestsTotal,
			1,
			map[string]string{"status": status},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
