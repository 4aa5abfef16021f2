package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"method", "route"},
	)

	ResponsesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "form_responses_ingested_total",
			Help: "Total number of form responses persisted via connect/response",
		},
	)

	ResponsesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_responses_processed_total",
			Help: "Total number of response processing attempts by result",
		},
		[]string{"result"},
	)

	ProcessingIncidents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "form_processing_incidents_total",
			Help: "Total number of field coercion incidents reported",
		},
	)

	ConnectionsBound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "form_connections_bound_total",
			Help: "Total number of handshakes completed (forms bound)",
		},
	)
)
