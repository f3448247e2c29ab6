package trust

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "matchboard_rate_limited_total",
	Help: "Number of actions refused by the sliding-window limiter",
}, []string{"action"})

var threadsCreatedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "matchboard_threads_created_total",
	Help: "Number of new message threads",
})

var threadRefusedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "matchboard_thread_refused_total",
	Help: "Number of refused thread openings, by internal reason",
}, []string{"reason"})

var messagesSentCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "matchboard_messages_sent_total",
	Help: "Number of persisted messages",
})

var sendRefusedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "matchboard_send_refused_total",
	Help: "Number of refused sends, by error kind",
}, []string{"kind"})

var notificationErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "matchboard_notification_errors_total",
	Help: "Number of failed best-effort notification upserts",
})

var contactDisclosedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "matchboard_contact_disclosed_total",
	Help: "Number of contact reads that passed the reciprocity check",
})
