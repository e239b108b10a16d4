package email

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"swiftfit/internal/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()

	code := m.Run()
	os.Exit(code)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

func newTestService(rdb *redis.Client, sender Sender) *Service {
	return &Service{redis: rdb, sender: sender}
}

var classStart = time.Date(2025, 3, 11, 18, 30, 0, 0, time.UTC)

func TestNotificationsAreQueued(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		send func(s *Service) error
	}{
		{"booking confirmation", func(s *Service) error {
			return s.SendBookingConfirmation(ctx, "ann@example.com", "Ann", "Vinyasa Flow", classStart, 12*time.Hour)
		}},
		{"booking cancellation", func(s *Service) error {
			return s.SendBookingCancellation(ctx, "ann@example.com", "Ann", "Vinyasa Flow", classStart, 1)
		}},
		{"waitlist promoted", func(s *Service) error {
			return s.SendWaitlistPromoted(ctx, "ann@example.com", "Ann", "Vinyasa Flow", classStart)
		}},
		{"spot available", func(s *Service) error {
			return s.SendSpotAvailable(ctx, "ann@example.com", "Ann", "Vinyasa Flow", classStart)
		}},
		{"verification", func(s *Service) error {
			return s.SendVerificationEmail(ctx, "ann@example.com", "Ann", "https://swiftfit.test/verify?token=abc")
		}},
		{"class reminder", func(s *Service) error {
			return s.SendClassReminder(ctx, "ann@example.com", "", classStart)
		}},
		{"admin alert", func(s *Service) error {
			return s.SendAdminAlert(ctx, "ops@example.com", "Renewal failed", "purchase 9")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, rmock := redismock.NewClientMock()
			rmock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)

			err := tt.send(newTestService(db, nil))
			assert.NoError(t, err)
			assert.NoError(t, rmock.ExpectationsWereMet())
		})
	}
}

func TestEnqueueRedisError(t *testing.T) {
	db, rmock := redismock.NewClientMock()
	rmock.Regexp().ExpectLPush("emails", `.*`).SetErr(errors.New("connection refused"))

	err := newTestService(db, nil).SendAdminAlert(context.Background(), "ops@example.com", "x", "y")
	assert.Error(t, err)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestDirectDeliveryWithoutRedis(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(m Message) bool {
		return m.To == "ann@example.com" && m.Subject == "Booking confirmed: Vinyasa Flow"
	})).Return(nil).Once()

	svc := newTestService(nil, sender)
	err := svc.SendBookingConfirmation(context.Background(), "ann@example.com", "Ann", "Vinyasa Flow", classStart, 12*time.Hour)
	require.NoError(t, err)
	sender.AssertExpectations(t)

	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("boom")).Once()
	err = svc.SendSpotAvailable(context.Background(), "ann@example.com", "Ann", "Vinyasa Flow", classStart)
	assert.Error(t, err)
}

func TestBookingConfirmationUsesCancelWindow(t *testing.T) {
	tests := []struct {
		window time.Duration
		want   string
	}{
		{6 * time.Hour, "at least 6 hours before class"},
		{time.Hour, "at least 1 hour before class"},
		{90 * time.Minute, "at least 90 minutes before class"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			sender := new(MockSender)
			sender.On("Send", mock.Anything, mock.MatchedBy(func(m Message) bool {
				return strings.Contains(m.Body, tt.want) && !strings.Contains(m.Body, "12 hours")
			})).Return(nil).Once()

			err := newTestService(nil, sender).SendBookingConfirmation(context.Background(), "ann@example.com", "Ann", "Vinyasa Flow", classStart, tt.window)
			require.NoError(t, err)
			sender.AssertExpectations(t)
		})
	}
}

func queuedJob(t *testing.T, tries int) string {
	t.Helper()
	data, err := json.Marshal(EmailJob{
		Type:    TypeBookingConfirmed,
		To:      "ann@example.com",
		Name:    "Ann",
		Subject: "Booking confirmed",
		Body:    "see you there",
		Tries:   tries,
		Created: classStart,
	})
	require.NoError(t, err)
	return string(data)
}

func TestProcessNext(t *testing.T) {
	t.Run("Delivers job", func(t *testing.T) {
		db, rmock := redismock.NewClientMock()
		rmock.ExpectBRPop(pollTimeout, "emails").SetVal([]string{"emails", queuedJob(t, 0)})

		sender := new(MockSender)
		sender.On("Send", mock.Anything, Message{
			To: "ann@example.com", Name: "Ann", Subject: "Booking confirmed", Body: "see you there",
		}).Return(nil).Once()

		newTestService(db, sender).processNext(context.Background())

		sender.AssertExpectations(t)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("Requeues after a failure", func(t *testing.T) {
		db, rmock := redismock.NewClientMock()
		rmock.ExpectBRPop(pollTimeout, "emails").SetVal([]string{"emails", queuedJob(t, 0)})
		rmock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)

		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

		newTestService(db, sender).processNext(context.Background())

		sender.AssertExpectations(t)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("Parks job after the last try", func(t *testing.T) {
		db, rmock := redismock.NewClientMock()
		rmock.ExpectBRPop(pollTimeout, "emails").SetVal([]string{"emails", queuedJob(t, maxTries-1)})
		rmock.Regexp().ExpectLPush("emails:failed", `.*`).SetVal(1)

		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

		newTestService(db, sender).processNext(context.Background())

		sender.AssertExpectations(t)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("Drops malformed job", func(t *testing.T) {
		db, rmock := redismock.NewClientMock()
		rmock.ExpectBRPop(pollTimeout, "emails").SetVal([]string{"emails", "{not json"})

		sender := new(MockSender)
		newTestService(db, sender).processNext(context.Background())

		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})
}

func TestQueueLength(t *testing.T) {
	db, rmock := redismock.NewClientMock()
	rmock.ExpectLLen("emails").SetVal(4)

	assert.Equal(t, int64(4), newTestService(db, nil).QueueLength(context.Background()))
	assert.NoError(t, rmock.ExpectationsWereMet())

	assert.Zero(t, newTestService(nil, nil).QueueLength(context.Background()))
}

func TestStartReturnsOnCancel(t *testing.T) {
	db, _ := redismock.NewClientMock()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		newTestService(db, nil).Start(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker still running after cancel")
	}
}
