package credit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"swiftfit/internal/db"
	"swiftfit/internal/payment"

	"github.com/jmoiron/sqlx"
)

const (
	packageColumns    = `id, name, credits, price, currency, validity_days, is_active, created_at`
	membershipColumns = `id, name, monthly_credits, price, currency, is_active, created_at`
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListActive(ctx context.Context, profileID int, now time.Time) ([]Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE student_profile_id = $1 AND is_active AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY expires_at ASC NULLS LAST, purchased_at ASC
	`

	purchases := []Purchase{}
	if err := r.db.SelectContext(ctx, &purchases, query, profileID, now); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repository) ListByProfile(ctx context.Context, profileID int) ([]Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE student_profile_id = $1 ORDER BY purchased_at DESC`

	purchases := []Purchase{}
	if err := r.db.SelectContext(ctx, &purchases, query, profileID); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Purchase, error) {
	var p Purchase
	err := r.db.GetContext(ctx, &p, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) SetAutoRenew(ctx context.Context, id int, autoRenew bool, nextBilling *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE purchases SET auto_renew = $2, next_billing_date = $3 WHERE id = $1 AND purchase_type = 'membership'`,
		id, autoRenew, nextBilling,
	)
	return err
}

func (r *repository) FindExpired(ctx context.Context, now time.Time) ([]Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE is_active AND expires_at < $1 AND credits_remaining > 0
		ORDER BY id
	`

	purchases := []Purchase{}
	if err := r.db.SelectContext(ctx, &purchases, query, now); err != nil {
		return nil, err
	}
	return purchases, nil
}

// Deactivate repeats the expiry predicate so a row changed since it was
// selected is left alone. It reports whether the row was deactivated.
func (r *repository) Deactivate(ctx context.Context, id int, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE purchases SET is_active = FALSE WHERE id = $1 AND is_active AND expires_at < $2 AND credits_remaining > 0`,
		id, now,
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// renewalPredicate selects active auto-renewing memberships that have not
// lapsed yet (expires_at after nowParam) and expire by horizonParam.
func renewalPredicate(nowParam, horizonParam string) string {
	return `purchase_type = 'membership' AND is_active AND auto_renew AND expires_at IS NOT NULL AND expires_at > ` + nowParam + ` AND expires_at <= ` + horizonParam
}

func (r *repository) FindRenewalCandidates(ctx context.Context, now, horizon time.Time) ([]Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE ` + renewalPredicate("$1", "$2") + ` ORDER BY expires_at`

	purchases := []Purchase{}
	if err := r.db.SelectContext(ctx, &purchases, query, now, horizon); err != nil {
		return nil, err
	}
	return purchases, nil
}

// Renew extends one membership by a billing period and records the renewal
// payment. The renewal predicate is checked again under the row lock, so a
// purchase renewed by an overlapping run yields ErrRenewalNotDue.
func (r *repository) Renew(ctx context.Context, purchaseID int, horizon, now time.Time) (*Renewal, error) {
	var out *Renewal

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var p Purchase
		query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1 AND ` + renewalPredicate("$2", "$3") + ` FOR UPDATE`
		if err := sqlx.GetContext(ctx, tx, &p, query, purchaseID, now, horizon); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRenewalNotDue
			}
			return err
		}
		if p.MembershipID == nil {
			return ErrMembershipNotFound
		}

		m, err := getMembership(ctx, tx, *p.MembershipID)
		if err != nil {
			return err
		}

		pay := &payment.Payment{
			StudentProfileID: p.StudentProfileID,
			Amount:           m.Price,
			Currency:         m.Currency,
			Method:           payment.MethodAutoRenewal,
			Purpose:          payment.PurposeRenewal,
			ReferenceID:      &m.ID,
			Status:           payment.StatusCompleted,
			PaymentDate:      now,
		}
		if err := payment.Insert(ctx, tx, pay); err != nil {
			return err
		}

		newExpiry := p.ExpiresAt.Add(RenewalPeriod)
		nextBilling := newExpiry.Add(RenewalPeriod)
		_, err = tx.ExecContext(ctx, `
			UPDATE purchases
			SET expires_at = $2,
			    next_billing_date = $3,
			    payment_id = $4,
			    credits_remaining = COALESCE($5, credits_remaining),
			    credits_total = COALESCE($5, credits_total)
			WHERE id = $1
		`, p.ID, newExpiry, nextBilling, pay.ID, m.MonthlyCredits)
		if err != nil {
			return err
		}

		p.ExpiresAt = &newExpiry
		p.NextBillingDate = &nextBilling
		p.PaymentID = &pay.ID
		if m.MonthlyCredits != nil {
			credits := *m.MonthlyCredits
			p.CreditsRemaining = &credits
			p.CreditsTotal = &credits
		}
		out = &Renewal{Purchase: p, PaymentID: pay.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ListPackages(ctx context.Context, activeOnly bool) ([]Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE is_active OR NOT $1 ORDER BY price`

	packages := []Package{}
	if err := r.db.SelectContext(ctx, &packages, query, activeOnly); err != nil {
		return nil, err
	}
	return packages, nil
}

func (r *repository) GetPackage(ctx context.Context, id int) (*Package, error) {
	return getPackage(ctx, r.db, id)
}

func (r *repository) CreatePackage(ctx context.Context, p *Package) error {
	query := `
		INSERT INTO packages (name, credits, price, currency, validity_days, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query, p.Name, p.Credits, p.Price, p.Currency, p.ValidityDays, p.IsActive).
		Scan(&p.ID, &p.CreatedAt)
}

func (r *repository) ListMemberships(ctx context.Context, activeOnly bool) ([]Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE is_active OR NOT $1 ORDER BY price`

	memberships := []Membership{}
	if err := r.db.SelectContext(ctx, &memberships, query, activeOnly); err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *repository) GetMembership(ctx context.Context, id int) (*Membership, error) {
	return getMembership(ctx, r.db, id)
}

func (r *repository) CreateMembership(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO memberships (name, monthly_credits, price, currency, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query, m.Name, m.MonthlyCredits, m.Price, m.Currency, m.IsActive).
		Scan(&m.ID, &m.CreatedAt)
}

// Grant stores a manual sale: the payment first, then the purchase it paid for.
func (r *repository) Grant(ctx context.Context, p *Purchase, pay *payment.Payment) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := payment.Insert(ctx, tx, pay); err != nil {
			return err
		}
		p.PaymentID = &pay.ID
		return insertPurchase(ctx, tx, p)
	})
}

func (r *repository) CreatePayment(ctx context.Context, pay *payment.Payment) error {
	return payment.Insert(ctx, r.db, pay)
}

// ApplyNotification moves a gateway payment to status. A payment that
// becomes completed gets its purchase created in the same transaction; a
// refunded one has its purchase deactivated. Notifications that do not change
// anything are reported as duplicates.
func (r *repository) ApplyNotification(ctx context.Context, orderID, status string, now time.Time) (*NotificationResult, error) {
	var out *NotificationResult

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		pay, err := payment.LockByGatewayID(ctx, tx, orderID)
		if err != nil {
			return err
		}

		out = &NotificationResult{PaymentID: pay.ID, PaymentStatus: pay.Status}
		if !statusTransitionAllowed(pay.Status, status) {
			out.Duplicate = true
			return nil
		}

		if err := payment.SetStatus(ctx, tx, pay.ID, status); err != nil {
			return err
		}
		out.PaymentStatus = status

		switch status {
		case payment.StatusCompleted:
			p, err := r.purchaseFor(ctx, tx, pay, now)
			if err != nil {
				return err
			}
			p.PaymentID = &pay.ID
			if err := insertPurchase(ctx, tx, p); err != nil {
				return err
			}
			out.PurchaseID = p.ID
		case payment.StatusRefunded:
			_, err := tx.ExecContext(ctx, `UPDATE purchases SET is_active = FALSE WHERE payment_id = $1`, pay.ID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) purchaseFor(ctx context.Context, q sqlx.QueryerContext, pay *payment.Payment, now time.Time) (*Purchase, error) {
	if pay.ReferenceID == nil {
		return nil, ErrInvalidPurchaseType
	}

	switch pay.Purpose {
	case payment.PurposePackage:
		pkg, err := getPackage(ctx, q, *pay.ReferenceID)
		if err != nil {
			return nil, err
		}
		return newPurchase(pay.StudentProfileID, pkg, nil, false, now), nil
	case payment.PurposeMembership:
		m, err := getMembership(ctx, q, *pay.ReferenceID)
		if err != nil {
			return nil, err
		}
		return newPurchase(pay.StudentProfileID, nil, m, false, now), nil
	default:
		return nil, ErrInvalidPurchaseType
	}
}

// statusTransitionAllowed permits pending to move anywhere and completed to
// move to refunded. Everything else is final.
func statusTransitionAllowed(from, to string) bool {
	if from == to {
		return false
	}
	switch from {
	case payment.StatusPending:
		return true
	case payment.StatusCompleted:
		return to == payment.StatusRefunded
	default:
		return false
	}
}

func getPackage(ctx context.Context, q sqlx.QueryerContext, id int) (*Package, error) {
	var p Package
	if err := sqlx.GetContext(ctx, q, &p, `SELECT `+packageColumns+` FROM packages WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &p, nil
}

func getMembership(ctx context.Context, q sqlx.QueryerContext, id int) (*Membership, error) {
	var m Membership
	if err := sqlx.GetContext(ctx, q, &m, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}
