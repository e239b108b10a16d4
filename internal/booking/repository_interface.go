package booking

import (
	"context"
	"time"

	"swiftfit/internal/class"
)

type Repository interface {
	// Create books a seat and takes the credit for it in one transaction.
	Create(ctx context.Context, classID, profileID int, now time.Time) (*Booking, error)
	GetByID(ctx context.Context, id int) (*Booking, error)
	// Cancel releases a confirmed booking, refunding its credits unless late.
	Cancel(ctx context.Context, id int, late bool, now time.Time) (*Booking, int, error)
	// UpdateStatus sets a booking's status. A non-zero classID restricts the
	// update to bookings of that class.
	UpdateStatus(ctx context.Context, id, classID int, status string) (*Booking, error)
	ListByProfile(ctx context.Context, profileID int) ([]BookingWithDetails, error)
	ListByClass(ctx context.Context, classID int) ([]BookingWithDetails, error)

	GetClass(ctx context.Context, classID int) (*class.Class, error)
	CompleteClass(ctx context.Context, classID int) error
	CancelClass(ctx context.Context, classID int, now time.Time) ([]Booking, error)

	Contact(ctx context.Context, profileID int) (*Contact, error)
}
