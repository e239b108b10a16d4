package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftfit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swiftfit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftfit_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	BookingCancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftfit_booking_cancellations_total",
			Help: "Booking cancellations by type",
		},
		[]string{"type"},
	)

	WaitlistPromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftfit_waitlist_promotions_total",
			Help: "Waitlist entries promoted, by mode",
		},
		[]string{"mode"},
	)

	PurchasesExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swiftfit_purchases_expired_total",
			Help: "Purchases deactivated by the expiry sweep",
		},
	)

	RenewalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftfit_membership_renewals_total",
			Help: "Membership renewal attempts by result",
		},
		[]string{"result"},
	)

	GatewayNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftfit_gateway_notifications_total",
			Help: "Payment gateway notifications by resulting payment status",
		},
		[]string{"status"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftfit_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swiftfit_email_queue_length",
			Help: "Current length of email queue",
		},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftfit_uploads_total",
			Help: "Image uploads by result",
		},
		[]string{"result"},
	)

	SchedulerJobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiftfit_scheduler_job_runs_total",
			Help: "Scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(outcome string) {
	BookingsTotal.WithLabelValues(outcome).Inc()
}

func RecordBookingCancellation(cancellationType string) {
	BookingCancellationsTotal.WithLabelValues(cancellationType).Inc()
}

func RecordWaitlistPromotions(mode string, n int) {
	if n > 0 {
		WaitlistPromotionsTotal.WithLabelValues(mode).Add(float64(n))
	}
}

func RecordExpiredPurchases(n int) {
	if n > 0 {
		PurchasesExpiredTotal.Add(float64(n))
	}
}

func RecordRenewal(result string) {
	RenewalsTotal.WithLabelValues(result).Inc()
}

func RecordGatewayNotification(status string) {
	GatewayNotificationsTotal.WithLabelValues(status).Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func RecordUpload(result string) {
	UploadsTotal.WithLabelValues(result).Inc()
}

func RecordJobRun(job string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	SchedulerJobRunsTotal.WithLabelValues(job, result).Inc()
}
