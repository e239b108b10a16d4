package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"swiftfit/internal/auth"
	"swiftfit/internal/class"
	"swiftfit/internal/credit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct{ mock.Mock }

func (m *MockRepository) Create(ctx context.Context, classID, profileID int, now time.Time) (*Booking, error) {
	args := m.Called(ctx, classID, profileID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id int) (*Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockRepository) Cancel(ctx context.Context, id int, late bool, now time.Time) (*Booking, int, error) {
	args := m.Called(ctx, id, late, now)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*Booking), args.Int(1), args.Error(2)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id, classID int, status string) (*Booking, error) {
	args := m.Called(ctx, id, classID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockRepository) ListByProfile(ctx context.Context, profileID int) ([]BookingWithDetails, error) {
	args := m.Called(ctx, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]BookingWithDetails), args.Error(1)
}

func (m *MockRepository) ListByClass(ctx context.Context, classID int) ([]BookingWithDetails, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]BookingWithDetails), args.Error(1)
}

func (m *MockRepository) GetClass(ctx context.Context, classID int) (*class.Class, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*class.Class), args.Error(1)
}

func (m *MockRepository) CompleteClass(ctx context.Context, classID int) error {
	return m.Called(ctx, classID).Error(0)
}

func (m *MockRepository) CancelClass(ctx context.Context, classID int, now time.Time) ([]Booking, error) {
	args := m.Called(ctx, classID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Booking), args.Error(1)
}

func (m *MockRepository) Contact(ctx context.Context, profileID int) (*Contact, error) {
	args := m.Called(ctx, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Contact), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) SendBookingConfirmation(ctx context.Context, to, name, classTitle string, start time.Time, cancelWindow time.Duration) error {
	return m.Called(ctx, to, name, classTitle, start, cancelWindow).Error(0)
}

func (m *MockNotifier) SendBookingCancellation(ctx context.Context, to, name, classTitle string, start time.Time, creditsRefunded int) error {
	return m.Called(ctx, to, name, classTitle, start, creditsRefunded).Error(0)
}

type MockPromoter struct{ mock.Mock }

func (m *MockPromoter) OnSpotReleased(ctx context.Context, classID int) error {
	return m.Called(ctx, classID).Error(0)
}

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService(repo Repository, n Notifier, p Promoter) *service {
	s := NewService(repo, n, p, Config{}).(*service)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	start := fixedNow.Add(48 * time.Hour)

	t.Run("Email failure does not fail the booking", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Create", ctx, 3, 4, fixedNow).Return(&Booking{ID: 100, ClassID: 3, StudentProfileID: 4, CreditsUsed: 1}, nil)
		repo.On("Contact", ctx, 4).Return(&Contact{Name: "Ana", Email: "ana@example.com"}, nil)
		repo.On("GetClass", ctx, 3).Return(&class.Class{ID: 3, Title: "Reformer", StartTime: start}, nil)

		notifier := new(MockNotifier)
		notifier.On("SendBookingConfirmation", ctx, "ana@example.com", "Ana", "Reformer", start, DefaultLateCancelWindow).Return(errors.New("smtp down"))

		b, err := newTestService(repo, notifier, nil).Create(ctx, 4, 3)
		require.NoError(t, err)
		assert.Equal(t, 100, b.ID)
		notifier.AssertExpectations(t)
	})

	t.Run("Full class", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Create", ctx, 3, 4, fixedNow).Return(nil, ErrClassFull)

		_, err := newTestService(repo, nil, nil).Create(ctx, 4, 3)
		assert.ErrorIs(t, err, ErrClassFull)
	})

	t.Run("Missing contact sends nothing", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Create", ctx, 3, 4, fixedNow).Return(&Booking{ID: 100, ClassID: 3, StudentProfileID: 4}, nil)
		repo.On("Contact", ctx, 4).Return(nil, ErrStudentNotFound)
		notifier := new(MockNotifier)

		_, err := newTestService(repo, notifier, nil).Create(ctx, 4, 3)
		require.NoError(t, err)
		notifier.AssertNotCalled(t, "SendBookingConfirmation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBookingOutcome(t *testing.T) {
	assert.Equal(t, "full", bookingOutcome(ErrClassFull))
	assert.Equal(t, "insufficient_credits", bookingOutcome(credit.ErrInsufficientCredits))
	assert.Equal(t, "rejected", bookingOutcome(class.ErrClassNotFound))
	assert.Equal(t, "error", bookingOutcome(errors.New("x")))
}

func TestServiceCancel(t *testing.T) {
	ctx := context.Background()
	owner := auth.Identity{UserID: 1, ProfileID: 4, Role: auth.RoleStudent}
	confirmed := &Booking{ID: 100, ClassID: 3, StudentProfileID: 4, Status: StatusConfirmed, CreditsUsed: 1}

	t.Run("Outside the window refunds and promotes", func(t *testing.T) {
		start := fixedNow.Add(24 * time.Hour)
		repo := new(MockRepository)
		repo.On("GetByID", ctx, 100).Return(confirmed, nil)
		repo.On("GetClass", ctx, 3).Return(&class.Class{ID: 3, Title: "Reformer", StartTime: start, Status: class.StatusScheduled}, nil)
		repo.On("Cancel", ctx, 100, false, fixedNow).Return(&Booking{ID: 100, Status: StatusCancelled, StudentProfileID: 4}, 1, nil)
		repo.On("Contact", ctx, 4).Return(&Contact{Name: "Ana", Email: "ana@example.com"}, nil)

		promoter := new(MockPromoter)
		promoter.On("OnSpotReleased", ctx, 3).Return(nil)
		notifier := new(MockNotifier)
		notifier.On("SendBookingCancellation", ctx, "ana@example.com", "Ana", "Reformer", start, 1).Return(nil)

		res, err := newTestService(repo, notifier, promoter).Cancel(ctx, owner, 100)
		require.NoError(t, err)
		assert.False(t, res.Late)
		assert.Equal(t, 1, res.CreditsRefunded)
		promoter.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("Inside the window is late", func(t *testing.T) {
		start := fixedNow.Add(2 * time.Hour)
		repo := new(MockRepository)
		repo.On("GetByID", ctx, 100).Return(confirmed, nil)
		repo.On("GetClass", ctx, 3).Return(&class.Class{ID: 3, StartTime: start, Status: class.StatusScheduled}, nil)
		repo.On("Cancel", ctx, 100, true, fixedNow).Return(&Booking{ID: 100, Status: StatusLateCancel}, 0, nil)

		promoter := new(MockPromoter)
		promoter.On("OnSpotReleased", ctx, 3).Return(errors.New("lock timeout"))

		res, err := newTestService(repo, nil, promoter).Cancel(ctx, owner, 100)
		require.NoError(t, err, "promotion failure is logged, not returned")
		assert.True(t, res.Late)
		assert.Zero(t, res.CreditsRefunded)
	})

	t.Run("Someone else's booking", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", ctx, 100).Return(&Booking{ID: 100, StudentProfileID: 9, Status: StatusConfirmed}, nil)

		_, err := newTestService(repo, nil, nil).Cancel(ctx, owner, 100)
		assert.Error(t, err)
		repo.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Not confirmed", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", ctx, 100).Return(&Booking{ID: 100, StudentProfileID: 4, Status: StatusAttended}, nil)

		_, err := newTestService(repo, nil, nil).Cancel(ctx, owner, 100)
		assert.ErrorIs(t, err, ErrBookingNotCancellable)
	})
}

func TestMarkAttendance(t *testing.T) {
	ctx := context.Background()

	t.Run("Invalid status", func(t *testing.T) {
		repo := new(MockRepository)
		_, err := newTestService(repo, nil, nil).MarkAttendance(ctx, 100, StatusCancelled)
		assert.ErrorIs(t, err, ErrInvalidAttendanceStatus)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Not found", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("UpdateStatus", ctx, 100, 0, StatusAttended).Return(nil, ErrBookingNotFound)

		_, err := newTestService(repo, nil, nil).MarkAttendance(ctx, 100, StatusAttended)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}

func TestBulkAttendance(t *testing.T) {
	ctx := context.Background()

	t.Run("Partial failure still completes the class", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetClass", ctx, 3).Return(&class.Class{ID: 3}, nil)
		repo.On("UpdateStatus", ctx, 100, 3, StatusAttended).Return(&Booking{ID: 100}, nil)
		repo.On("UpdateStatus", ctx, 101, 3, StatusAttended).Return(nil, ErrBookingNotFound)
		repo.On("UpdateStatus", ctx, 102, 3, StatusNoShow).Return(&Booking{ID: 102}, nil)
		repo.On("CompleteClass", ctx, 3).Return(nil)

		res, err := newTestService(repo, nil, nil).BulkAttendance(ctx, BulkAttendanceRequest{
			ClassID: 3, Attendees: []int{100, 101}, NoShows: []int{102},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Attended)
		assert.Equal(t, 1, res.NoShows)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, 101, res.Failed[0].BookingID)
		assert.Equal(t, class.StatusCompleted, res.ClassStatus)
		repo.AssertExpectations(t)
	})

	t.Run("Missing class", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetClass", ctx, 3).Return(nil, class.ErrClassNotFound)

		_, err := newTestService(repo, nil, nil).BulkAttendance(ctx, BulkAttendanceRequest{ClassID: 3, Attendees: []int{1}})
		assert.ErrorIs(t, err, class.ErrClassNotFound)
		repo.AssertNotCalled(t, "CompleteClass", mock.Anything, mock.Anything)
	})
}

func TestServiceCancelClass(t *testing.T) {
	ctx := context.Background()
	start := fixedNow.Add(time.Hour)

	repo := new(MockRepository)
	repo.On("CancelClass", ctx, 3, fixedNow).Return([]Booking{
		{ID: 100, StudentProfileID: 4, CreditsUsed: 1},
		{ID: 101, StudentProfileID: 5, CreditsUsed: 0},
	}, nil)
	repo.On("GetClass", ctx, 3).Return(&class.Class{ID: 3, Title: "Reformer", StartTime: start}, nil)
	repo.On("Contact", ctx, 4).Return(&Contact{Name: "Ana", Email: "ana@example.com"}, nil)
	repo.On("Contact", ctx, 5).Return(&Contact{Name: "Ben", Email: ""}, nil)

	notifier := new(MockNotifier)
	notifier.On("SendBookingCancellation", ctx, "ana@example.com", "Ana", "Reformer", start, 1).Return(nil)

	n, err := newTestService(repo, notifier, nil).CancelClass(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	notifier.AssertNumberOfCalls(t, "SendBookingCancellation", 1)
}
