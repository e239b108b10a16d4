package waitlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"swiftfit/internal/auth"
	"swiftfit/internal/booking"
	"swiftfit/internal/class"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct{ mock.Mock }

func (m *MockRepository) Join(ctx context.Context, classID, profileID int, now time.Time) (*Entry, error) {
	args := m.Called(ctx, classID, profileID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Entry), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id int) (*Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Entry), args.Error(1)
}

func (m *MockRepository) Leave(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) ListByClass(ctx context.Context, classID int) ([]EntryWithDetails, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]EntryWithDetails), args.Error(1)
}

func (m *MockRepository) ListByProfile(ctx context.Context, profileID int) ([]EntryWithDetails, error) {
	args := m.Called(ctx, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]EntryWithDetails), args.Error(1)
}

func (m *MockRepository) Promote(ctx context.Context, classID int, autoPromote bool, now time.Time) (*PromoteResult, error) {
	args := m.Called(ctx, classID, autoPromote, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PromoteResult), args.Error(1)
}

func (m *MockRepository) GetClass(ctx context.Context, classID int) (*class.Class, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*class.Class), args.Error(1)
}

func (m *MockRepository) Contact(ctx context.Context, profileID int) (*booking.Contact, error) {
	args := m.Called(ctx, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Contact), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) SendWaitlistPromoted(ctx context.Context, to, name, classTitle string, start time.Time) error {
	return m.Called(ctx, to, name, classTitle, start).Error(0)
}

func (m *MockNotifier) SendSpotAvailable(ctx context.Context, to, name, classTitle string, start time.Time) error {
	return m.Called(ctx, to, name, classTitle, start).Error(0)
}

func newTestService(repo Repository, n Notifier, cfg Config) *service {
	s := NewService(repo, n, cfg).(*service)
	s.now = func() time.Time { return now }
	return s
}

func TestServicePromote(t *testing.T) {
	ctx := context.Background()
	bookingID := 100

	t.Run("Emails follow the action taken", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Promote", ctx, 3, true, now).Return(&PromoteResult{
			ClassID: 3, Mode: ModeAutoBook, SpotsAvailable: 3, Promoted: 1,
			Promotions: []Promotion{
				{EntryID: 20, StudentProfileID: 4, Action: ActionBooked, BookingID: &bookingID},
				{EntryID: 21, StudentProfileID: 5, Action: ActionSkipped},
				{EntryID: 22, StudentProfileID: 6, Action: ActionBooked, BookingID: &bookingID},
			},
		}, nil)
		repo.On("GetClass", ctx, 3).Return(&class.Class{ID: 3, Title: "Reformer", StartTime: start}, nil).Once()
		repo.On("Contact", ctx, 4).Return(&booking.Contact{Name: "Ana", Email: "ana@example.com"}, nil)
		repo.On("Contact", ctx, 6).Return(nil, booking.ErrStudentNotFound)

		notifier := new(MockNotifier)
		notifier.On("SendWaitlistPromoted", ctx, "ana@example.com", "Ana", "Reformer", start).Return(errors.New("quota"))

		res, err := newTestService(repo, notifier, Config{}).Promote(ctx, 3, true)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Promoted)
		notifier.AssertNumberOfCalls(t, "SendWaitlistPromoted", 1)
		repo.AssertNotCalled(t, "Contact", ctx, 5)
	})

	t.Run("Notify mode sends spot available", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Promote", ctx, 3, false, now).Return(&PromoteResult{
			ClassID: 3, Mode: ModeNotify, Notified: 1,
			Promotions: []Promotion{{EntryID: 20, StudentProfileID: 4, Action: ActionNotified}},
		}, nil)
		repo.On("GetClass", ctx, 3).Return(&class.Class{ID: 3, Title: "Reformer", StartTime: start}, nil)
		repo.On("Contact", ctx, 4).Return(&booking.Contact{Name: "Ana", Email: "ana@example.com"}, nil)

		notifier := new(MockNotifier)
		notifier.On("SendSpotAvailable", ctx, "ana@example.com", "Ana", "Reformer", start).Return(nil)

		_, err := newTestService(repo, notifier, Config{}).Promote(ctx, 3, false)
		require.NoError(t, err)
		notifier.AssertExpectations(t)
	})

	t.Run("No promotions, no lookups", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Promote", ctx, 3, true, now).Return(&PromoteResult{ClassID: 3, Promotions: []Promotion{}}, nil)

		_, err := newTestService(repo, new(MockNotifier), Config{}).Promote(ctx, 3, true)
		require.NoError(t, err)
		repo.AssertNotCalled(t, "GetClass", mock.Anything, mock.Anything)
	})
}

func TestOnSpotReleasedUsesConfiguredMode(t *testing.T) {
	ctx := context.Background()

	for _, auto := range []bool{true, false} {
		repo := new(MockRepository)
		repo.On("Promote", ctx, 3, auto, now).Return(&PromoteResult{ClassID: 3, Promotions: []Promotion{}}, nil)

		require.NoError(t, newTestService(repo, nil, Config{AutoPromote: auto}).OnSpotReleased(ctx, 3))
		repo.AssertExpectations(t)
	}
}

func TestServiceLeave(t *testing.T) {
	ctx := context.Background()
	student := auth.Identity{UserID: 1, ProfileID: 4, Role: auth.RoleStudent}

	t.Run("Own entry", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", ctx, 20).Return(&Entry{ID: 20, ClassID: 3, StudentProfileID: 4}, nil)
		repo.On("Leave", ctx, 20).Return(nil)

		assert.NoError(t, newTestService(repo, nil, Config{}).Leave(ctx, student, 20))
	})

	t.Run("Someone else's entry", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", ctx, 20).Return(&Entry{ID: 20, ClassID: 3, StudentProfileID: 9}, nil)

		err := newTestService(repo, nil, Config{}).Leave(ctx, student, 20)
		assert.Error(t, err)
		repo.AssertNotCalled(t, "Leave", mock.Anything, mock.Anything)
	})
}

func TestServiceListForClass(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	repo.On("GetClass", ctx, 3).Return(nil, class.ErrClassNotFound)

	_, err := newTestService(repo, nil, Config{}).ListForClass(ctx, 3)
	assert.ErrorIs(t, err, class.ErrClassNotFound)
}
