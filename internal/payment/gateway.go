package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"swiftfit/internal/api"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

var ErrGatewayFailed = api.Upstream("PAYMENT_GATEWAY_ERROR", "payment gateway request failed")

type ChargeRequest struct {
	OrderID       string
	Amount        decimal.Decimal
	ItemID        string
	ItemName      string
	CustomerName  string
	CustomerEmail string
}

type ChargeResult struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Gateway starts hosted-checkout transactions and authenticates the
// asynchronous notifications the provider sends back.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	VerifySignature(orderID, statusCode, grossAmount, signature string) bool
}

type MidtransGateway struct {
	client    snap.Client
	serverKey string
}

func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	g := &MidtransGateway{serverKey: serverKey}
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	g.client.New(serverKey, env)
	return g
}

func (g *MidtransGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	amount := req.Amount.Round(0).IntPart()
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.ItemID,
				Name:  truncate(req.ItemName, 50),
				Price: amount,
				Qty:   1,
			},
		},
	}

	resp, mErr := g.client.CreateTransaction(snapReq)
	if mErr != nil {
		return nil, &api.Error{Kind: api.KindUpstream, Code: ErrGatewayFailed.Code, Message: ErrGatewayFailed.Message, Err: mErr}
	}

	return &ChargeResult{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// VerifySignature checks sha512(order_id + status_code + gross_amount + server_key).
func (g *MidtransGateway) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return VerifyNotificationSignature(g.serverKey, orderID, statusCode, grossAmount, signature)
}

func VerifyNotificationSignature(serverKey, orderID, statusCode, grossAmount, signature string) bool {
	if serverKey == "" || signature == "" {
		return false
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	want := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(signature))) == 1
}

// MapGatewayStatus translates a provider transaction status into a payment status.
func MapGatewayStatus(transactionStatus, fraudStatus string) string {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "" || fraudStatus == "accept" {
			return StatusCompleted
		}
		return StatusPending
	case "settlement":
		return StatusCompleted
	case "deny", "cancel", "expire", "failure":
		return StatusFailed
	case "refund", "partial_refund":
		return StatusRefunded
	default:
		return StatusPending
	}
}

// truncate keeps at most n characters of s without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
