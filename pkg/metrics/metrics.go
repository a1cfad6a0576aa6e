package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvitationsIssued records invitation issue attempts by result (success|denied|invalid|dispatch_failed|error).
	InvitationsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memberdir_invitations_issued_total",
			Help: "Total number of invitation issue attempts",
		},
		[]string{"result"},
	)

	// RegistrationsCompleted counts registration completion attempts by result (success|no_invitation|error).
	RegistrationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memberdir_registrations_completed_total",
			Help: "Total number of registration completion attempts",
		},
		[]string{"result"},
	)

	// AccessDecisions counts capability evaluations and their outcome (allow|deny).
	AccessDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memberdir_access_decisions_total",
			Help: "Total number of directory capability decisions",
		},
		[]string{"capability", "result"},
	)

	// PendingInvitations tracks invitations awaiting redemption.
	PendingInvitations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memberdir_pending_invitations",
			Help: "Number of pending invitations",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memberdir_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
