// Package metrics provides Prometheus instrumentation and health/readiness
// HTTP endpoints for the scan dispatch subsystem. Metrics are registered at
// package init onto the default Prometheus registry and exposed via
// Handler(); health state is tracked independently via RegisterComponent and
// exposed via HealthHandler/ReadyHandler/LivenessHandler.
package metrics
