package credit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"swiftfit/internal/api"
	"swiftfit/internal/auth"
	"swiftfit/internal/logger"
	"swiftfit/internal/metrics"
	"swiftfit/internal/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNoActivePurchases    = api.NotFound("NO_ACTIVE_PURCHASES", "no active purchases found")
	ErrInsufficientCredits  = api.Validation("INSUFFICIENT_CREDITS", "no usable credits or membership")
	ErrPurchaseNotFound     = api.NotFound("PURCHASE_NOT_FOUND", "purchase not found")
	ErrInvalidPurchaseType  = api.Validation("INVALID_PURCHASE_TYPE", "purchase is not a membership")
	ErrPackageNotFound      = api.NotFound("PACKAGE_NOT_FOUND", "package not found")
	ErrMembershipNotFound   = api.NotFound("MEMBERSHIP_NOT_FOUND", "membership not found")
	ErrCatalogItemInactive  = api.Validation("CATALOG_ITEM_INACTIVE", "this item is no longer for sale")
	ErrInvalidPrice         = api.Validation("INVALID_PRICE", "price must not be negative")
	ErrRenewalNotDue        = api.Conflict("RENEWAL_NOT_DUE", "membership is not due for renewal")
	ErrGatewayNotConfigured = api.Upstream("PAYMENT_GATEWAY_DISABLED", "payment gateway is not configured")
	ErrInvalidSignature     = api.Unauthorized("INVALID_SIGNATURE", "invalid notification signature")
)

// Notifier delivers operational alerts to staff.
type Notifier interface {
	SendAdminAlert(ctx context.Context, to, subject, body string) error
}

type Config struct {
	Currency   string
	AdminEmail string
}

type Service interface {
	ActiveCredits(ctx context.Context, profileID int) (*ActiveCredits, error)
	ListPurchases(ctx context.Context, profileID int) ([]Purchase, error)
	ToggleAutoRenew(ctx context.Context, caller auth.Identity, purchaseID int) (*Purchase, error)

	ExpireCredits(ctx context.Context) (*ExpireResult, error)
	ProcessRenewals(ctx context.Context) (*RenewalSummary, error)

	ListPackages(ctx context.Context, includeInactive bool) ([]Package, error)
	CreatePackage(ctx context.Context, req CreatePackageRequest) (*Package, error)
	ListMemberships(ctx context.Context, includeInactive bool) ([]Membership, error)
	CreateMembership(ctx context.Context, req CreateMembershipRequest) (*Membership, error)

	Grant(ctx context.Context, req GrantRequest) (*Purchase, error)
	Checkout(ctx context.Context, caller auth.Identity, profileID int, req CheckoutRequest) (*CheckoutResult, error)
	HandleGatewayNotification(ctx context.Context, n GatewayNotification) (*NotificationResult, error)
}

type service struct {
	repo     Repository
	gateway  payment.Gateway
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// NewService wires the ledger. gateway and notifier may be nil: checkout is
// then unavailable and renewal failures are only logged.
func NewService(repo Repository, gateway payment.Gateway, notifier Notifier, cfg Config) Service {
	return &service{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *service) ActiveCredits(ctx context.Context, profileID int) (*ActiveCredits, error) {
	purchases, err := s.repo.ListActive(ctx, profileID, s.now())
	if err != nil {
		return nil, err
	}
	if len(purchases) == 0 {
		return nil, ErrNoActivePurchases
	}
	return Summarize(profileID, purchases), nil
}

func (s *service) ListPurchases(ctx context.Context, profileID int) ([]Purchase, error) {
	return s.repo.ListByProfile(ctx, profileID)
}

func (s *service) ToggleAutoRenew(ctx context.Context, caller auth.Identity, purchaseID int) (*Purchase, error) {
	p, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccessProfile(p.StudentProfileID) {
		return nil, api.ErrForbidden
	}
	if p.PurchaseType != TypeMembership {
		return nil, ErrInvalidPurchaseType
	}

	p.AutoRenew = !p.AutoRenew
	p.NextBillingDate = nil
	if p.AutoRenew {
		next := s.now().Add(RenewalPeriod)
		p.NextBillingDate = &next
	}

	if err := s.repo.SetAutoRenew(ctx, p.ID, p.AutoRenew, p.NextBillingDate); err != nil {
		return nil, fmt.Errorf("toggle auto-renew: %w", err)
	}

	logger.Info("auto-renew toggled", logger.FieldPurchase, p.ID, "auto_renew", p.AutoRenew)
	return p, nil
}

// ExpireCredits deactivates expired purchases that still hold credits. Rows
// are handled one at a time; a run that stops early is completed by the next.
func (s *service) ExpireCredits(ctx context.Context) (*ExpireResult, error) {
	now := s.now()

	expired, err := s.repo.FindExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find expired purchases: %w", err)
	}

	result := &ExpireResult{Checked: len(expired), PurchaseIDs: []int{}}
	for _, p := range expired {
		ok, err := s.repo.Deactivate(ctx, p.ID, now)
		if err != nil {
			logger.Error("failed to expire purchase", logger.FieldPurchase, p.ID, logger.FieldError, err)
			result.Failed++
			continue
		}
		if ok {
			result.Expired++
			result.PurchaseIDs = append(result.PurchaseIDs, p.ID)
		}
	}

	metrics.RecordExpiredPurchases(result.Expired)
	logger.Info("credit expiry sweep finished", "checked", result.Checked, "expired", result.Expired, "failed", result.Failed)
	return result, nil
}

// ProcessRenewals renews every auto-renewing membership expiring within the
// renewal window. Each purchase succeeds or fails on its own; only the
// initial lookup can fail the sweep.
func (s *service) ProcessRenewals(ctx context.Context) (*RenewalSummary, error) {
	now := s.now()
	horizon := now.Add(RenewalWindow)

	candidates, err := s.repo.FindRenewalCandidates(ctx, now, horizon)
	if err != nil {
		return nil, fmt.Errorf("find renewal candidates: %w", err)
	}

	summary := &RenewalSummary{Results: []RenewalResult{}}
	for _, p := range candidates {
		summary.Processed++
		res := RenewalResult{PurchaseID: p.ID}

		renewal, err := s.repo.Renew(ctx, p.ID, horizon, now)
		switch {
		case errors.Is(err, ErrRenewalNotDue):
			res.Status = RenewalSkipped
			summary.Skipped++
		case err != nil:
			res.Status = RenewalFailed
			res.Error = err.Error()
			summary.Failed++
			logger.Error("membership renewal failed", logger.FieldPurchase, p.ID, logger.FieldError, err)
		default:
			res.Status = RenewalRenewed
			res.PaymentID = renewal.PaymentID
			res.NewExpiresAt = renewal.Purchase.ExpiresAt
			summary.Renewed++
		}
		metrics.RecordRenewal(res.Status)
		summary.Results = append(summary.Results, res)
	}

	if summary.Failed > 0 {
		s.alertRenewalFailures(ctx, summary)
	}

	logger.Info("renewal sweep finished",
		"processed", summary.Processed, "renewed", summary.Renewed,
		"skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

func (s *service) alertRenewalFailures(ctx context.Context, summary *RenewalSummary) {
	if s.notifier == nil || s.cfg.AdminEmail == "" {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d membership renewals failed:\n\n", summary.Failed, summary.Processed)
	for _, r := range summary.Results {
		if r.Status == RenewalFailed {
			fmt.Fprintf(&b, "- purchase %d: %s\n", r.PurchaseID, r.Error)
		}
	}

	subject := fmt.Sprintf("Membership renewals: %d failed", summary.Failed)
	if err := s.notifier.SendAdminAlert(ctx, s.cfg.AdminEmail, subject, b.String()); err != nil {
		logger.Warn("failed to queue renewal failure alert", logger.FieldError, err)
	}
}

func (s *service) ListPackages(ctx context.Context, includeInactive bool) ([]Package, error) {
	return s.repo.ListPackages(ctx, !includeInactive)
}

func (s *service) CreatePackage(ctx context.Context, req CreatePackageRequest) (*Package, error) {
	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}

	p := &Package{
		Name:         req.Name,
		Credits:      req.Credits,
		Price:        req.Price,
		Currency:     s.currency(req.Currency),
		ValidityDays: req.ValidityDays,
		IsActive:     true,
	}
	if err := s.repo.CreatePackage(ctx, p); err != nil {
		return nil, fmt.Errorf("create package: %w", err)
	}
	return p, nil
}

func (s *service) ListMemberships(ctx context.Context, includeInactive bool) ([]Membership, error) {
	return s.repo.ListMemberships(ctx, !includeInactive)
}

func (s *service) CreateMembership(ctx context.Context, req CreateMembershipRequest) (*Membership, error) {
	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}

	m := &Membership{
		Name:           req.Name,
		MonthlyCredits: req.MonthlyCredits,
		Price:          req.Price,
		Currency:       s.currency(req.Currency),
		IsActive:       true,
	}
	if err := s.repo.CreateMembership(ctx, m); err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}
	return m, nil
}

// Grant records a sale taken outside the gateway, such as cash at the front desk.
func (s *service) Grant(ctx context.Context, req GrantRequest) (*Purchase, error) {
	item, err := s.catalogItem(ctx, req.PurchaseType, req.ReferenceID)
	if err != nil {
		return nil, err
	}
	if req.AutoRenew && req.PurchaseType != TypeMembership {
		return nil, ErrInvalidPurchaseType
	}

	now := s.now()
	p := newPurchase(req.StudentProfileID, item.pkg, item.membership, req.AutoRenew, now)
	pay := &payment.Payment{
		StudentProfileID: req.StudentProfileID,
		Amount:           item.price(),
		Currency:         item.currency(),
		Method:           payment.MethodManual,
		Purpose:          req.PurchaseType,
		ReferenceID:      &req.ReferenceID,
		Status:           payment.StatusCompleted,
		PaymentDate:      now,
	}

	if err := s.repo.Grant(ctx, p, pay); err != nil {
		return nil, fmt.Errorf("grant purchase: %w", err)
	}

	logger.Info("purchase granted", logger.FieldProfileID, req.StudentProfileID, logger.FieldPurchase, p.ID, "type", p.PurchaseType)
	return p, nil
}

// Checkout opens a gateway transaction for a package or membership. The
// purchase itself is created when the gateway reports the payment settled.
func (s *service) Checkout(ctx context.Context, caller auth.Identity, profileID int, req CheckoutRequest) (*CheckoutResult, error) {
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	item, err := s.catalogItem(ctx, req.PurchaseType, req.ReferenceID)
	if err != nil {
		return nil, err
	}

	orderID := "SF-" + uuid.NewString()
	pay := &payment.Payment{
		StudentProfileID:     profileID,
		Amount:               item.price(),
		Currency:             item.currency(),
		Method:               payment.MethodGateway,
		Purpose:              req.PurchaseType,
		ReferenceID:          &req.ReferenceID,
		GatewayTransactionID: &orderID,
		Status:               payment.StatusPending,
		PaymentDate:          s.now(),
	}
	if err := s.repo.CreatePayment(ctx, pay); err != nil {
		return nil, err
	}

	charge, err := s.gateway.CreateCharge(ctx, payment.ChargeRequest{
		OrderID:       orderID,
		Amount:        pay.Amount,
		ItemID:        fmt.Sprintf("%s-%d", req.PurchaseType, req.ReferenceID),
		ItemName:      item.name(),
		CustomerEmail: caller.Email,
	})
	if err != nil {
		logger.Error("gateway charge failed", "order_id", orderID, logger.FieldError, err)
		return nil, err
	}

	return &CheckoutResult{
		PaymentID:   pay.ID,
		OrderID:     orderID,
		Token:       charge.Token,
		RedirectURL: charge.RedirectURL,
	}, nil
}

func (s *service) HandleGatewayNotification(ctx context.Context, n GatewayNotification) (*NotificationResult, error) {
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	if !s.gateway.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		logger.Warn("gateway notification with bad signature", "order_id", n.OrderID)
		return nil, ErrInvalidSignature
	}

	status := payment.MapGatewayStatus(n.TransactionStatus, n.FraudStatus)
	res, err := s.repo.ApplyNotification(ctx, n.OrderID, status, s.now())
	if err != nil {
		return nil, err
	}

	metrics.RecordGatewayNotification(res.PaymentStatus)
	logger.Info("gateway notification applied",
		"order_id", n.OrderID, "payment_status", res.PaymentStatus,
		logger.FieldPurchase, res.PurchaseID, "duplicate", res.Duplicate)
	return res, nil
}

func (s *service) currency(requested string) string {
	if requested != "" {
		return strings.ToUpper(requested)
	}
	return s.cfg.Currency
}

type catalogItem struct {
	pkg        *Package
	membership *Membership
}

func (c catalogItem) price() decimal.Decimal {
	if c.pkg != nil {
		return c.pkg.Price
	}
	return c.membership.Price
}

func (c catalogItem) currency() string {
	if c.pkg != nil {
		return c.pkg.Currency
	}
	return c.membership.Currency
}

func (c catalogItem) name() string {
	if c.pkg != nil {
		return c.pkg.Name
	}
	return c.membership.Name
}

func (s *service) catalogItem(ctx context.Context, purchaseType string, id int) (catalogItem, error) {
	switch purchaseType {
	case TypePackage:
		pkg, err := s.repo.GetPackage(ctx, id)
		if err != nil {
			return catalogItem{}, err
		}
		if !pkg.IsActive {
			return catalogItem{}, ErrCatalogItemInactive
		}
		return catalogItem{pkg: pkg}, nil
	case TypeMembership:
		m, err := s.repo.GetMembership(ctx, id)
		if err != nil {
			return catalogItem{}, err
		}
		if !m.IsActive {
			return catalogItem{}, ErrCatalogItemInactive
		}
		return catalogItem{membership: m}, nil
	default:
		return catalogItem{}, ErrInvalidPurchaseType
	}
}
