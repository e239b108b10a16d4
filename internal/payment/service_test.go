package payment

import (
	"context"
	"errors"
	"testing"

	"swiftfit/internal/auth"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct{ mock.Mock }

func (m *MockRepository) ListByProfile(ctx context.Context, profileID int) ([]Payment, error) {
	args := m.Called(ctx, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Payment), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, limit, offset int) ([]Payment, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Payment), args.Error(1)
}

func (m *MockRepository) ListMethods(ctx context.Context, profileID int) ([]PaymentMethod, error) {
	args := m.Called(ctx, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PaymentMethod), args.Error(1)
}

func (m *MockRepository) GetMethod(ctx context.Context, id int) (*PaymentMethod, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentMethod), args.Error(1)
}

func (m *MockRepository) CreateMethod(ctx context.Context, pm *PaymentMethod) error {
	return m.Called(ctx, pm).Error(0)
}

func (m *MockRepository) DeleteMethod(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func validCard() CreatePaymentMethodRequest {
	return CreatePaymentMethodRequest{GatewayCardID: "card_1", Brand: "visa", Last4: "4242", ExpMonth: 1, ExpYear: 2030}
}

func TestAddMethod(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("CreateMethod", ctx, mock.MatchedBy(func(pm *PaymentMethod) bool {
			return pm.StudentProfileID == 4 && pm.GatewayCardID == "card_1"
		})).Return(nil)

		pm, err := NewService(repo).AddMethod(ctx, 4, validCard())
		require.NoError(t, err)
		assert.Equal(t, "4242", pm.Last4)
		repo.AssertExpectations(t)
	})

	t.Run("Duplicate card", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("CreateMethod", ctx, mock.Anything).
			Return(&pq.Error{Code: "23505", Constraint: constraintGatewayCardID})

		_, err := NewService(repo).AddMethod(ctx, 4, validCard())
		assert.ErrorIs(t, err, ErrDuplicateCard)
	})

	t.Run("Unknown profile", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("CreateMethod", ctx, mock.Anything).
			Return(&pq.Error{Code: "23503", Constraint: constraintStudentProfile})

		_, err := NewService(repo).AddMethod(ctx, 999, validCard())
		assert.ErrorIs(t, err, ErrInvalidStudentProfile)
	})

	t.Run("Other failure", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("CreateMethod", ctx, mock.Anything).Return(errors.New("conn reset"))

		_, err := NewService(repo).AddMethod(ctx, 4, validCard())
		assert.EqualError(t, err, "create payment method: conn reset")
	})
}

func TestRemoveMethod(t *testing.T) {
	ctx := context.Background()
	owner := auth.Identity{UserID: 1, ProfileID: 4, Role: auth.RoleStudent}

	t.Run("Owner removes", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetMethod", ctx, 9).Return(&PaymentMethod{ID: 9, StudentProfileID: 4}, nil)
		repo.On("DeleteMethod", ctx, 9).Return(nil)

		assert.NoError(t, NewService(repo).RemoveMethod(ctx, owner, 9))
		repo.AssertExpectations(t)
	})

	t.Run("Other student forbidden", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetMethod", ctx, 9).Return(&PaymentMethod{ID: 9, StudentProfileID: 5}, nil)

		err := NewService(repo).RemoveMethod(ctx, owner, 9)
		assert.Error(t, err)
		repo.AssertNotCalled(t, "DeleteMethod", ctx, 9)
	})

	t.Run("Missing", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetMethod", ctx, 9).Return(nil, ErrPaymentMethodNotFound)

		assert.ErrorIs(t, NewService(repo).RemoveMethod(ctx, owner, 9), ErrPaymentMethodNotFound)
	})
}
