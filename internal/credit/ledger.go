package credit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const purchaseColumns = `id, student_profile_id, purchase_type, package_id, membership_id, credits_remaining, credits_total, purchased_at, expires_at, is_active, auto_renew, next_billing_date, payment_id`

// Consume takes one credit for a booking from the student's best usable
// purchase and returns that purchase along with the credits used (0 for
// unlimited memberships). It locks the chosen row, so it must run inside the
// booking transaction.
//
// Unlimited memberships are preferred, then whatever expires first, then the
// oldest purchase.
func Consume(ctx context.Context, tx sqlx.ExtContext, profileID int, now time.Time) (*Purchase, int, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE student_profile_id = $1
		  AND is_active
		  AND (expires_at IS NULL OR expires_at > $2)
		  AND (credits_remaining IS NULL OR credits_remaining = -1 OR credits_remaining > 0)
		ORDER BY (credits_remaining IS NULL OR credits_remaining = -1) DESC,
		         expires_at ASC NULLS LAST,
		         purchased_at ASC
		LIMIT 1
		FOR UPDATE
	`

	var p Purchase
	if err := sqlx.GetContext(ctx, tx, &p, query, profileID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrInsufficientCredits
		}
		return nil, 0, err
	}

	if p.IsUnlimited() {
		return &p, 0, nil
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE purchases SET credits_remaining = credits_remaining - 1 WHERE id = $1 AND credits_remaining > 0`,
		p.ID,
	)
	if err != nil {
		return nil, 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, 0, err
	}
	if rows == 0 {
		return nil, 0, ErrInsufficientCredits
	}

	remaining := *p.CreditsRemaining - 1
	p.CreditsRemaining = &remaining
	return &p, 1, nil
}

// Refund returns n credits to a purchase. Unlimited purchases are left as is.
func Refund(ctx context.Context, e sqlx.ExecerContext, purchaseID, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := e.ExecContext(ctx,
		`UPDATE purchases SET credits_remaining = credits_remaining + $2 WHERE id = $1 AND credits_remaining IS NOT NULL AND credits_remaining <> -1`,
		purchaseID, n,
	)
	return err
}

// Summarize splits active purchases into packages and memberships and
// totals the package balance.
func Summarize(profileID int, purchases []Purchase) *ActiveCredits {
	out := &ActiveCredits{
		StudentProfileID: profileID,
		Packages:         []Purchase{},
		Memberships:      []Purchase{},
	}

	for _, p := range purchases {
		switch p.PurchaseType {
		case TypePackage:
			out.Packages = append(out.Packages, p)
			if p.CreditsRemaining != nil && *p.CreditsRemaining > 0 {
				out.TotalCredits += *p.CreditsRemaining
			}
		case TypeMembership:
			out.Memberships = append(out.Memberships, p)
			if p.IsUnlimited() {
				out.HasUnlimitedAccess = true
			}
		}
	}
	return out
}

// newPurchase builds the ledger row a sale of pkg or m creates.
func newPurchase(profileID int, pkg *Package, m *Membership, autoRenew bool, now time.Time) *Purchase {
	p := &Purchase{
		StudentProfileID: profileID,
		PurchasedAt:      now,
		IsActive:         true,
	}

	if pkg != nil {
		credits := pkg.Credits
		expires := now.AddDate(0, 0, pkg.ValidityDays)
		p.PurchaseType = TypePackage
		p.PackageID = &pkg.ID
		p.CreditsRemaining = &credits
		p.CreditsTotal = &credits
		p.ExpiresAt = &expires
		return p
	}

	expires := now.Add(RenewalPeriod)
	p.PurchaseType = TypeMembership
	p.MembershipID = &m.ID
	p.ExpiresAt = &expires
	if m.MonthlyCredits != nil {
		credits := *m.MonthlyCredits
		total := credits
		p.CreditsRemaining = &credits
		p.CreditsTotal = &total
	} else {
		unlimited := UnlimitedCredits
		p.CreditsRemaining = &unlimited
	}
	if autoRenew {
		next := now.Add(RenewalPeriod)
		p.AutoRenew = true
		p.NextBillingDate = &next
	}
	return p
}

func insertPurchase(ctx context.Context, q sqlx.QueryerContext, p *Purchase) error {
	query := `
		INSERT INTO purchases (student_profile_id, purchase_type, package_id, membership_id, credits_remaining,
			credits_total, purchased_at, expires_at, is_active, auto_renew, next_billing_date, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	return sqlx.GetContext(ctx, q, &p.ID, query,
		p.StudentProfileID, p.PurchaseType, p.PackageID, p.MembershipID, p.CreditsRemaining,
		p.CreditsTotal, p.PurchasedAt, p.ExpiresAt, p.IsActive, p.AutoRenew, p.NextBillingDate, p.PaymentID,
	)
}
