package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"

	PurposePackage    = "package"
	PurposeMembership = "membership"
	PurposeRenewal    = "renewal"

	MethodGateway     = "midtrans"
	MethodManual      = "manual"
	MethodAutoRenewal = "auto_renewal"
)

type Payment struct {
	ID                   int             `db:"id" json:"id"`
	StudentProfileID     int             `db:"student_profile_id" json:"student_profile_id"`
	Amount               decimal.Decimal `db:"amount" json:"amount"`
	Currency             string          `db:"currency" json:"currency"`
	Method               string          `db:"method" json:"method"`
	Purpose              string          `db:"purpose" json:"purpose"`
	ReferenceID          *int            `db:"reference_id" json:"reference_id,omitempty"`
	GatewayTransactionID *string         `db:"gateway_transaction_id" json:"gateway_transaction_id,omitempty"`
	Status               string          `db:"status" json:"status"`
	PaymentDate          time.Time       `db:"payment_date" json:"payment_date"`
}

// PaymentMethod is a stored reference to a card held by the gateway. Raw card
// data never reaches this service.
type PaymentMethod struct {
	ID               int       `db:"id" json:"id"`
	StudentProfileID int       `db:"student_profile_id" json:"student_profile_id"`
	GatewayCardID    string    `db:"gateway_card_id" json:"gateway_card_id"`
	Brand            string    `db:"brand" json:"brand"`
	Last4            string    `db:"last4" json:"last4"`
	ExpMonth         int       `db:"exp_month" json:"exp_month"`
	ExpYear          int       `db:"exp_year" json:"exp_year"`
	IsDefault        bool      `db:"is_default" json:"is_default"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type CreatePaymentMethodRequest struct {
	StudentProfileID int    `json:"studentProfileId"`
	GatewayCardID    string `json:"gatewayCardId" binding:"required,max=255"`
	Brand            string `json:"brand" binding:"max=50"`
	Last4            string `json:"last4" binding:"omitempty,len=4,numeric"`
	ExpMonth         int    `json:"expMonth" binding:"required,gte=1,lte=12"`
	ExpYear          int    `json:"expYear" binding:"required,gte=2000"`
	IsDefault        bool   `json:"isDefault"`
}
