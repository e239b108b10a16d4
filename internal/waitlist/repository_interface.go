package waitlist

import (
	"context"
	"time"

	"swiftfit/internal/booking"
	"swiftfit/internal/class"
)

type Repository interface {
	Join(ctx context.Context, classID, profileID int, now time.Time) (*Entry, error)
	GetByID(ctx context.Context, id int) (*Entry, error)
	Leave(ctx context.Context, id int) error
	ListByClass(ctx context.Context, classID int) ([]EntryWithDetails, error)
	ListByProfile(ctx context.Context, profileID int) ([]EntryWithDetails, error)
	Promote(ctx context.Context, classID int, autoPromote bool, now time.Time) (*PromoteResult, error)
	GetClass(ctx context.Context, classID int) (*class.Class, error)
	Contact(ctx context.Context, profileID int) (*booking.Contact, error)
}
