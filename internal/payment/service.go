package payment

import (
	"context"
	"fmt"

	"swiftfit/internal/api"
	"swiftfit/internal/auth"
	"swiftfit/internal/db"
	"swiftfit/internal/logger"
)

var (
	ErrPaymentNotFound       = api.NotFound("PAYMENT_NOT_FOUND", "payment not found")
	ErrPaymentMethodNotFound = api.NotFound("PAYMENT_METHOD_NOT_FOUND", "payment method not found")
	ErrDuplicateCard         = api.Validation("DUPLICATE_CARD", "this card is already saved")
	ErrInvalidStudentProfile = api.Validation("INVALID_STUDENT_PROFILE", "student profile does not exist")
)

const (
	constraintGatewayCardID  = "payment_methods_gateway_card_id_key"
	constraintStudentProfile = "payment_methods_student_profile_id_fkey"
)

type Service interface {
	ListPayments(ctx context.Context, profileID int) ([]Payment, error)
	ListAllPayments(ctx context.Context, limit, offset int) ([]Payment, error)
	ListMethods(ctx context.Context, profileID int) ([]PaymentMethod, error)
	AddMethod(ctx context.Context, profileID int, req CreatePaymentMethodRequest) (*PaymentMethod, error)
	RemoveMethod(ctx context.Context, caller auth.Identity, id int) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListPayments(ctx context.Context, profileID int) ([]Payment, error) {
	return s.repo.ListByProfile(ctx, profileID)
}

func (s *service) ListAllPayments(ctx context.Context, limit, offset int) ([]Payment, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *service) ListMethods(ctx context.Context, profileID int) ([]PaymentMethod, error) {
	return s.repo.ListMethods(ctx, profileID)
}

func (s *service) AddMethod(ctx context.Context, profileID int, req CreatePaymentMethodRequest) (*PaymentMethod, error) {
	pm := &PaymentMethod{
		StudentProfileID: profileID,
		GatewayCardID:    req.GatewayCardID,
		Brand:            req.Brand,
		Last4:            req.Last4,
		ExpMonth:         req.ExpMonth,
		ExpYear:          req.ExpYear,
		IsDefault:        req.IsDefault,
	}

	if err := s.repo.CreateMethod(ctx, pm); err != nil {
		switch {
		case db.IsUniqueViolation(err, constraintGatewayCardID):
			return nil, ErrDuplicateCard
		case db.IsForeignKeyViolation(err, constraintStudentProfile):
			return nil, ErrInvalidStudentProfile
		}
		return nil, fmt.Errorf("create payment method: %w", err)
	}

	logger.Info("payment method saved", logger.FieldProfileID, profileID, "payment_method_id", pm.ID)
	return pm, nil
}

func (s *service) RemoveMethod(ctx context.Context, caller auth.Identity, id int) error {
	pm, err := s.repo.GetMethod(ctx, id)
	if err != nil {
		return err
	}

	if !caller.CanAccessProfile(pm.StudentProfileID) {
		return api.ErrForbidden
	}

	return s.repo.DeleteMethod(ctx, id)
}
