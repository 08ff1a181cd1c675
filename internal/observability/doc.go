// Package observability provides structured logging and Prometheus metrics
// for the router.
package observability
