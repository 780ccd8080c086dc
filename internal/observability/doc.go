// Package observability provides structured logging and Prometheus metrics
// for the users service.
//
// Loggers are built from configuration once at startup and passed down by
// constructor injection. Metrics are registered on a dedicated registry that
// the /metrics endpoint serves.
package observability
