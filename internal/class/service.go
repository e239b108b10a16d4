package class

import (
	"context"
	"fmt"
	"time"

	"swiftfit/internal/api"
	"swiftfit/internal/logger"
)

const maxListRange = 93 * 24 * time.Hour

var (
	ErrClassNotFound         = api.NotFound("CLASS_NOT_FOUND", "class not found")
	ErrClassTypeNotFound     = api.Validation("CLASS_TYPE_NOT_FOUND", "class type does not exist")
	ErrInvalidClassTimes     = api.Validation("INVALID_CLASS_TIMES", "end time must be after start time")
	ErrInvalidDateRange      = api.Validation("INVALID_DATE_RANGE", "invalid date range")
	ErrClassAlreadyCancelled = api.Conflict("CLASS_ALREADY_CANCELLED", "class is already cancelled")
	ErrClassCompleted        = api.Conflict("CLASS_COMPLETED", "class has already taken place")
)

// Canceller releases every confirmed booking of a class and marks it
// cancelled, returning how many bookings were released.
type Canceller interface {
	CancelClass(ctx context.Context, classID int) (int, error)
}

type CancelResult struct {
	ClassID           int `json:"class_id"`
	BookingsCancelled int `json:"bookings_cancelled"`
}

type Service interface {
	CreateType(ctx context.Context, req CreateClassTypeRequest) (*ClassType, error)
	ListTypes(ctx context.Context) ([]ClassType, error)
	Create(ctx context.Context, req CreateClassRequest) (*Class, error)
	Get(ctx context.Context, id int) (*Class, error)
	List(ctx context.Context, from, to time.Time) ([]ClassWithAvailability, error)
	Cancel(ctx context.Context, id int) (*CancelResult, error)
}

type service struct {
	repo      Repository
	canceller Canceller
}

func NewService(repo Repository, canceller Canceller) Service {
	return &service{repo: repo, canceller: canceller}
}

func (s *service) CreateType(ctx context.Context, req CreateClassTypeRequest) (*ClassType, error) {
	ct := &ClassType{Name: req.Name, Description: req.Description, DurationMinutes: req.DurationMinutes}
	if err := s.repo.CreateType(ctx, ct); err != nil {
		return nil, fmt.Errorf("create class type: %w", err)
	}
	return ct, nil
}

func (s *service) ListTypes(ctx context.Context) ([]ClassType, error) {
	return s.repo.ListTypes(ctx)
}

func (s *service) Create(ctx context.Context, req CreateClassRequest) (*Class, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, ErrInvalidClassTimes
	}

	exists, err := s.repo.TypeExists(ctx, req.ClassTypeID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrClassTypeNotFound
	}

	start := req.StartTime.UTC()
	c := &Class{
		ClassTypeID:  req.ClassTypeID,
		InstructorID: req.InstructorID,
		Title:        req.Title,
		ClassDate:    time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		StartTime:    start,
		EndTime:      req.EndTime.UTC(),
		Capacity:     req.Capacity,
		Status:       StatusScheduled,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}

	logger.Info("class scheduled", logger.FieldClassID, c.ID, "start", c.StartTime, "capacity", c.Capacity)
	return c, nil
}

func (s *service) Get(ctx context.Context, id int) (*Class, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, from, to time.Time) ([]ClassWithAvailability, error) {
	if !to.After(from) || to.Sub(from) > maxListRange {
		return nil, ErrInvalidDateRange
	}
	return s.repo.ListWithAvailability(ctx, from, to)
}

func (s *service) Cancel(ctx context.Context, id int) (*CancelResult, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch c.Status {
	case StatusCancelled:
		return nil, ErrClassAlreadyCancelled
	case StatusCompleted:
		return nil, ErrClassCompleted
	}

	released, err := s.canceller.CancelClass(ctx, id)
	if err != nil {
		return nil, err
	}

	logger.Info("class cancelled", logger.FieldClassID, id, "bookings_released", released)
	return &CancelResult{ClassID: id, BookingsCancelled: released}, nil
}
