package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_emails_sent_total",
			Help: "Total outreach emails sent",
		},
	)

	SendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_send_failures_total",
			Help: "Total sends that went terminal FAILED",
		},
	)

	RepliesDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_replies_detected_total",
			Help: "Total inbound replies matched to a lead",
		},
	)

	AutoResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_autoresponses_sent_total",
			Help: "Total scheduling-link auto-responses sent",
		},
	)

	SchedulerFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_scheduler_faults_total",
			Help: "Unexpected tick failures per task",
		},
		[]string{"task"},
	)

	SentToday = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "outreach_sent_today",
			Help: "Sends committed against today's quota",
		},
	)
)

func Init() {
	prometheus.MustRegister(
		EmailsSent,
		SendFailures,
		RepliesDetected,
		AutoResponses,
		SchedulerFaults,
		SentToday,
	)
}
