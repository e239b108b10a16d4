package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/bookings", "201", 0.1)
	RecordHTTPRequest("POST", "/bookings", "201", 0.2)
	RecordHTTPRequest("POST", "/bookings", "409", 0.05)

	assert.Equal(t, float64(2), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/bookings", "201")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/bookings", "409")))
	assert.Equal(t, 1, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestRecordBooking(t *testing.T) {
	BookingsTotal.Reset()

	RecordBooking("confirmed")
	RecordBooking("confirmed")
	RecordBooking("class_full")

	assert.Equal(t, float64(2), testutil.ToFloat64(BookingsTotal.WithLabelValues("confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BookingsTotal.WithLabelValues("class_full")))
}

func TestRecordWaitlistPromotions_IgnoresZero(t *testing.T) {
	WaitlistPromotionsTotal.Reset()

	RecordWaitlistPromotions("auto", 0)
	RecordWaitlistPromotions("auto", 2)

	assert.Equal(t, float64(2), testutil.ToFloat64(WaitlistPromotionsTotal.WithLabelValues("auto")))
}

func TestRecordExpiredPurchases(t *testing.T) {
	before := testutil.ToFloat64(PurchasesExpiredTotal)

	RecordExpiredPurchases(3)
	RecordExpiredPurchases(0)

	assert.Equal(t, before+3, testutil.ToFloat64(PurchasesExpiredTotal))
}

func TestRecordJobRun(t *testing.T) {
	SchedulerJobRunsTotal.Reset()

	RecordJobRun("expire-credits", nil)
	RecordJobRun("expire-credits", errors.New("db down"))

	assert.Equal(t, float64(1), testutil.ToFloat64(SchedulerJobRunsTotal.WithLabelValues("expire-credits", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(SchedulerJobRunsTotal.WithLabelValues("expire-credits", "error")))
}

func TestRecordEmail(t *testing.T) {
	EmailsSentTotal.Reset()

	RecordEmail("booking_confirmation", "queued")

	assert.Equal(t, float64(1), testutil.ToFloat64(EmailsSentTotal.WithLabelValues("booking_confirmation", "queued")))
}
