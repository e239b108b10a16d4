package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swiftfit/internal/api"
	"swiftfit/internal/auth"
	"swiftfit/internal/class"
	"swiftfit/internal/credit"
	"swiftfit/internal/logger"
	"swiftfit/internal/metrics"
)

const DefaultLateCancelWindow = 12 * time.Hour

var (
	ErrBookingNotFound         = api.NotFound("BOOKING_NOT_FOUND", "booking not found")
	ErrStudentNotFound         = api.NotFound("STUDENT_NOT_FOUND", "student profile not found")
	ErrClassNotBookable        = api.Validation("CLASS_NOT_BOOKABLE", "class is not open for booking")
	ErrClassStarted            = api.Validation("CLASS_STARTED", "class has already started")
	ErrAlreadyBooked           = api.Conflict("ALREADY_BOOKED", "student already has a booking for this class")
	ErrClassFull               = api.Conflict("CLASS_FULL", "class is full, join the waitlist instead")
	ErrBookingNotCancellable   = api.Conflict("BOOKING_NOT_CANCELLABLE", "only confirmed bookings can be cancelled")
	ErrInvalidAttendanceStatus = api.Validation("INVALID_STATUS", "status must be one of: attended, no_show, confirmed")
	ErrBookingNotRevertible    = api.Conflict("BOOKING_NOT_REVERTIBLE", "cancelled bookings cannot be set back to confirmed")
)

// Notifier sends booking emails. Implementations may queue; callers treat
// every error as non-fatal.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, to, name, classTitle string, start time.Time, cancelWindow time.Duration) error
	SendBookingCancellation(ctx context.Context, to, name, classTitle string, start time.Time, creditsRefunded int) error
}

// Promoter is told when a confirmed seat of a class frees up.
type Promoter interface {
	OnSpotReleased(ctx context.Context, classID int) error
}

type Config struct {
	LateCancelWindow time.Duration
}

type Service interface {
	Create(ctx context.Context, profileID, classID int) (*Booking, error)
	Cancel(ctx context.Context, caller auth.Identity, bookingID int) (*CancelResult, error)
	MarkAttendance(ctx context.Context, bookingID int, status string) (*Booking, error)
	BulkAttendance(ctx context.Context, req BulkAttendanceRequest) (*BulkAttendanceResult, error)
	ListForProfile(ctx context.Context, profileID int) ([]BookingWithDetails, error)
	ListForClass(ctx context.Context, classID int) ([]BookingWithDetails, error)
	CancelClass(ctx context.Context, classID int) (int, error)
}

type service struct {
	repo     Repository
	notifier Notifier
	promoter Promoter
	cfg      Config
	now      func() time.Time
}

// NewService builds the booking service. notifier and promoter may be nil.
func NewService(repo Repository, notifier Notifier, promoter Promoter, cfg Config) Service {
	if cfg.LateCancelWindow <= 0 {
		cfg.LateCancelWindow = DefaultLateCancelWindow
	}
	return &service{
		repo:     repo,
		notifier: notifier,
		promoter: promoter,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *service) Create(ctx context.Context, profileID, classID int) (*Booking, error) {
	b, err := s.repo.Create(ctx, classID, profileID, s.now())
	if err != nil {
		metrics.RecordBooking(bookingOutcome(err))
		return nil, err
	}
	metrics.RecordBooking("confirmed")

	logger.Info("booking created",
		logger.FieldBookingID, b.ID, logger.FieldClassID, classID,
		logger.FieldProfileID, profileID, "credits_used", b.CreditsUsed)

	s.notifyConfirmation(ctx, b)
	return b, nil
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, ErrClassFull):
		return "full"
	case errors.Is(err, credit.ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrAlreadyBooked):
		return "duplicate"
	case errors.Is(err, class.ErrClassNotFound), errors.Is(err, ErrClassNotBookable), errors.Is(err, ErrClassStarted):
		return "rejected"
	default:
		return "error"
	}
}

// Cancel releases a confirmed booking. Cancelling inside the late window
// forfeits the credit; otherwise it goes back to the purchase it came from.
func (s *service) Cancel(ctx context.Context, caller auth.Identity, bookingID int) (*CancelResult, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccessProfile(b.StudentProfileID) {
		return nil, api.ErrForbidden
	}
	if b.Status != StatusConfirmed {
		return nil, ErrBookingNotCancellable
	}

	c, err := s.repo.GetClass(ctx, b.ClassID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	late := c.StartTime.Sub(now) < s.cfg.LateCancelWindow

	updated, refunded, err := s.repo.Cancel(ctx, b.ID, late, now)
	if err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", b.ID, err)
	}

	kind := CancellationStandard
	if late {
		kind = CancellationLate
	}
	metrics.RecordBookingCancellation(kind)
	logger.Info("booking cancelled",
		logger.FieldBookingID, b.ID, logger.FieldClassID, c.ID,
		"late", late, "credits_refunded", refunded)

	if s.promoter != nil && c.Status == class.StatusScheduled && c.StartTime.After(now) {
		if err := s.promoter.OnSpotReleased(ctx, c.ID); err != nil {
			logger.Error("waitlist promotion after cancellation failed", logger.FieldClassID, c.ID, logger.FieldError, err)
		}
	}

	s.notifyCancellation(ctx, updated, c, refunded)
	return &CancelResult{Booking: updated, Late: late, CreditsRefunded: refunded}, nil
}

func (s *service) MarkAttendance(ctx context.Context, bookingID int, status string) (*Booking, error) {
	if !validAttendanceStatus(status) {
		return nil, ErrInvalidAttendanceStatus
	}
	return s.repo.UpdateStatus(ctx, bookingID, 0, status)
}

func validAttendanceStatus(status string) bool {
	switch status {
	case StatusAttended, StatusNoShow, StatusConfirmed:
		return true
	}
	return false
}

// BulkAttendance marks attendees and no-shows of one class. Each booking is
// updated on its own and failures are reported per item; the class is marked
// completed whatever happened to the individual bookings.
func (s *service) BulkAttendance(ctx context.Context, req BulkAttendanceRequest) (*BulkAttendanceResult, error) {
	if _, err := s.repo.GetClass(ctx, req.ClassID); err != nil {
		return nil, err
	}

	result := &BulkAttendanceResult{ClassID: req.ClassID, Failed: []AttendanceFailure{}}

	mark := func(ids []int, status string) int {
		n := 0
		for _, id := range ids {
			if _, err := s.repo.UpdateStatus(ctx, id, req.ClassID, status); err != nil {
				result.Failed = append(result.Failed, AttendanceFailure{BookingID: id, Status: status, Error: err.Error()})
				logger.Warn("attendance update failed", logger.FieldBookingID, id, logger.FieldError, err)
				continue
			}
			n++
		}
		return n
	}
	result.Attended = mark(req.Attendees, StatusAttended)
	result.NoShows = mark(req.NoShows, StatusNoShow)

	if err := s.repo.CompleteClass(ctx, req.ClassID); err != nil {
		return nil, fmt.Errorf("complete class %d: %w", req.ClassID, err)
	}
	result.ClassStatus = class.StatusCompleted

	logger.Info("attendance recorded", logger.FieldClassID, req.ClassID,
		"attended", result.Attended, "no_shows", result.NoShows, "failed", len(result.Failed))
	return result, nil
}

func (s *service) ListForProfile(ctx context.Context, profileID int) ([]BookingWithDetails, error) {
	return s.repo.ListByProfile(ctx, profileID)
}

func (s *service) ListForClass(ctx context.Context, classID int) ([]BookingWithDetails, error) {
	if _, err := s.repo.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return s.repo.ListByClass(ctx, classID)
}

// CancelClass implements class.Canceller.
func (s *service) CancelClass(ctx context.Context, classID int) (int, error) {
	released, err := s.repo.CancelClass(ctx, classID, s.now())
	if err != nil {
		return 0, err
	}

	if len(released) == 0 {
		return 0, nil
	}
	c, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		logger.Warn("cancelled class could not be reloaded for emails", logger.FieldClassID, classID, logger.FieldError, err)
		return len(released), nil
	}
	for i := range released {
		metrics.RecordBookingCancellation(CancellationClass)
		s.notifyCancellation(ctx, &released[i], c, released[i].CreditsUsed)
	}
	return len(released), nil
}

func (s *service) notifyConfirmation(ctx context.Context, b *Booking) {
	if s.notifier == nil {
		return
	}
	contact, c, ok := s.emailContext(ctx, b)
	if !ok {
		return
	}
	if err := s.notifier.SendBookingConfirmation(ctx, contact.Email, contact.Name, c.Title, c.StartTime, s.cfg.LateCancelWindow); err != nil {
		logger.Warn("booking confirmation email failed", logger.FieldBookingID, b.ID, logger.FieldError, err)
	}
}

func (s *service) notifyCancellation(ctx context.Context, b *Booking, c *class.Class, refunded int) {
	if s.notifier == nil {
		return
	}
	contact, err := s.repo.Contact(ctx, b.StudentProfileID)
	if err != nil || contact.Email == "" {
		logger.Warn("no contact for cancellation email", logger.FieldBookingID, b.ID, logger.FieldError, err)
		return
	}
	if err := s.notifier.SendBookingCancellation(ctx, contact.Email, contact.Name, c.Title, c.StartTime, refunded); err != nil {
		logger.Warn("cancellation email failed", logger.FieldBookingID, b.ID, logger.FieldError, err)
	}
}

func (s *service) emailContext(ctx context.Context, b *Booking) (*Contact, *class.Class, bool) {
	contact, err := s.repo.Contact(ctx, b.StudentProfileID)
	if err != nil || contact.Email == "" {
		logger.Warn("no contact for booking email", logger.FieldBookingID, b.ID, logger.FieldError, err)
		return nil, nil, false
	}
	c, err := s.repo.GetClass(ctx, b.ClassID)
	if err != nil {
		logger.Warn("class lookup for booking email failed", logger.FieldBookingID, b.ID, logger.FieldError, err)
		return nil, nil, false
	}
	return contact, c, true
}
