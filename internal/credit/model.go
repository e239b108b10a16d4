package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypePackage    = "package"
	TypeMembership = "membership"

	// UnlimitedCredits marks a membership without a credit cap. A NULL
	// credits_remaining means the same.
	UnlimitedCredits = -1

	RenewalPeriod = 30 * 24 * time.Hour
	RenewalWindow = 24 * time.Hour
)

type Package struct {
	ID           int             `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Credits      int             `db:"credits" json:"credits"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Currency     string          `db:"currency" json:"currency"`
	ValidityDays int             `db:"validity_days" json:"validity_days"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

type Membership struct {
	ID             int             `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	MonthlyCredits *int            `db:"monthly_credits" json:"monthly_credits"`
	Price          decimal.Decimal `db:"price" json:"price"`
	Currency       string          `db:"currency" json:"currency"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

type Purchase struct {
	ID               int        `db:"id" json:"id"`
	StudentProfileID int        `db:"student_profile_id" json:"student_profile_id"`
	PurchaseType     string     `db:"purchase_type" json:"purchase_type"`
	PackageID        *int       `db:"package_id" json:"package_id,omitempty"`
	MembershipID     *int       `db:"membership_id" json:"membership_id,omitempty"`
	CreditsRemaining *int       `db:"credits_remaining" json:"credits_remaining"`
	CreditsTotal     *int       `db:"credits_total" json:"credits_total"`
	PurchasedAt      time.Time  `db:"purchased_at" json:"purchased_at"`
	ExpiresAt        *time.Time `db:"expires_at" json:"expires_at"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	AutoRenew        bool       `db:"auto_renew" json:"auto_renew"`
	NextBillingDate  *time.Time `db:"next_billing_date" json:"next_billing_date"`
	PaymentID        *int       `db:"payment_id" json:"payment_id,omitempty"`
}

func (p *Purchase) IsUnlimited() bool {
	return p.CreditsRemaining == nil || *p.CreditsRemaining == UnlimitedCredits
}

// ActiveCredits is a student's usable balance.
type ActiveCredits struct {
	StudentProfileID   int        `json:"studentProfileId"`
	Packages           []Purchase `json:"packages"`
	Memberships        []Purchase `json:"memberships"`
	TotalCredits       int        `json:"totalCredits"`
	HasUnlimitedAccess bool       `json:"hasUnlimitedAccess"`
}

type ExpireResult struct {
	Checked     int   `json:"checked"`
	Expired     int   `json:"expired"`
	Failed      int   `json:"failed"`
	PurchaseIDs []int `json:"purchaseIds"`
}

const (
	RenewalRenewed = "renewed"
	RenewalSkipped = "skipped"
	RenewalFailed  = "failed"
)

type RenewalResult struct {
	PurchaseID   int        `json:"purchaseId"`
	Status       string     `json:"status"`
	PaymentID    int        `json:"paymentId,omitempty"`
	NewExpiresAt *time.Time `json:"newExpiresAt,omitempty"`
	Error        string     `json:"error,omitempty"`
}

type RenewalSummary struct {
	Processed int             `json:"processed"`
	Renewed   int             `json:"renewed"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Results   []RenewalResult `json:"results"`
}

type CreatePackageRequest struct {
	Name         string          `json:"name" binding:"required,max=255"`
	Credits      int             `json:"credits" binding:"required,gte=1"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	ValidityDays int             `json:"validityDays" binding:"required,gte=1"`
}

type CreateMembershipRequest struct {
	Name           string          `json:"name" binding:"required,max=255"`
	MonthlyCredits *int            `json:"monthlyCredits" binding:"omitempty,gte=1"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency" binding:"omitempty,len=3"`
}

// GrantRequest records an over-the-counter sale.
type GrantRequest struct {
	StudentProfileID int    `json:"studentProfileId" binding:"required"`
	PurchaseType     string `json:"purchaseType" binding:"required,oneof=package membership"`
	ReferenceID      int    `json:"referenceId" binding:"required"`
	AutoRenew        bool   `json:"autoRenew"`
}

type CheckoutRequest struct {
	StudentProfileID int    `json:"studentProfileId"`
	PurchaseType     string `json:"purchaseType" binding:"required,oneof=package membership"`
	ReferenceID      int    `json:"referenceId" binding:"required"`
}

type CheckoutResult struct {
	PaymentID   int    `json:"paymentId"`
	OrderID     string `json:"orderId"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
}

// GatewayNotification is the asynchronous status callback from the payment gateway.
type GatewayNotification struct {
	OrderID           string `json:"order_id" binding:"required"`
	StatusCode        string `json:"status_code" binding:"required"`
	GrossAmount       string `json:"gross_amount" binding:"required"`
	SignatureKey      string `json:"signature_key" binding:"required"`
	TransactionStatus string `json:"transaction_status" binding:"required"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
}

type NotificationResult struct {
	PaymentID     int    `json:"paymentId"`
	PaymentStatus string `json:"paymentStatus"`
	PurchaseID    int    `json:"purchaseId,omitempty"`
	Duplicate     bool   `json:"duplicate"`
}
