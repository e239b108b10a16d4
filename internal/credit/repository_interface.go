package credit

import (
	"context"
	"time"

	"swiftfit/internal/payment"
)

// Renewal is the outcome of renewing one membership purchase.
type Renewal struct {
	Purchase  Purchase
	PaymentID int
}

type Repository interface {
	ListActive(ctx context.Context, profileID int, now time.Time) ([]Purchase, error)
	ListByProfile(ctx context.Context, profileID int) ([]Purchase, error)
	GetByID(ctx context.Context, id int) (*Purchase, error)
	SetAutoRenew(ctx context.Context, id int, autoRenew bool, nextBilling *time.Time) error

	FindExpired(ctx context.Context, now time.Time) ([]Purchase, error)
	Deactivate(ctx context.Context, id int, now time.Time) (bool, error)

	FindRenewalCandidates(ctx context.Context, now, horizon time.Time) ([]Purchase, error)
	Renew(ctx context.Context, purchaseID int, horizon, now time.Time) (*Renewal, error)

	ListPackages(ctx context.Context, activeOnly bool) ([]Package, error)
	GetPackage(ctx context.Context, id int) (*Package, error)
	CreatePackage(ctx context.Context, p *Package) error
	ListMemberships(ctx context.Context, activeOnly bool) ([]Membership, error)
	GetMembership(ctx context.Context, id int) (*Membership, error)
	CreateMembership(ctx context.Context, m *Membership) error

	Grant(ctx context.Context, p *Purchase, pay *payment.Payment) error
	CreatePayment(ctx context.Context, pay *payment.Payment) error
	ApplyNotification(ctx context.Context, orderID, status string, now time.Time) (*NotificationResult, error)
}
