// Package metrics: счётчики и гистограммы prometheus биллинга.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MilestonesAccrued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_milestones_accrued_total",
			Help: "Total number of refund milestones accrued",
		},
		[]string{"milestone"},
	)

	AccrualErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_accrual_errors_total",
			Help: "Total number of per-package accrual failures",
		},
	)

	AccrualSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billing_accrual_sweep_duration_seconds",
			Help:    "Duration of one accrual sweep in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Total number of gateway webhook events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	GatewayCharges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_gateway_charges_total",
			Help: "Total number of one-time gateway charges by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	PayoutRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_payout_requests_total",
			Help: "Total number of payout requests by action",
		},
		[]string{"action"},
	)

	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_notifications_published_total",
			Help: "Total number of notification publish attempts by outcome",
		},
		[]string{"outcome"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_emails_sent_total",
			Help: "Total number of delivered emails by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)

	OpsAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_ops_alerts_total",
			Help: "Total number of raised manual-intervention alerts",
		},
		[]string{"kind"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Outcome-метки.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)
