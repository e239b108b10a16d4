package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"swiftfit/internal/db"

	"github.com/jmoiron/sqlx"
)

const paymentColumns = `id, student_profile_id, amount, currency, method, purpose, reference_id, gateway_transaction_id, status, payment_date`

const methodColumns = `id, student_profile_id, gateway_card_id, brand, last4, exp_month, exp_year, is_default, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListByProfile(ctx context.Context, profileID int) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE student_profile_id = $1 ORDER BY payment_date DESC`

	payments := []Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, profileID); err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Payment, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY payment_date DESC LIMIT $1 OFFSET $2`

	payments := []Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, limit, offset); err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) ListMethods(ctx context.Context, profileID int) ([]PaymentMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM payment_methods WHERE student_profile_id = $1 ORDER BY is_default DESC, created_at DESC`

	methods := []PaymentMethod{}
	if err := r.db.SelectContext(ctx, &methods, query, profileID); err != nil {
		return nil, err
	}
	return methods, nil
}

func (r *repository) GetMethod(ctx context.Context, id int) (*PaymentMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM payment_methods WHERE id = $1`

	var pm PaymentMethod
	if err := r.db.GetContext(ctx, &pm, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, err
	}
	return &pm, nil
}

// CreateMethod inserts pm. A new default card clears the flag on the
// student's other cards in the same transaction.
func (r *repository) CreateMethod(ctx context.Context, pm *PaymentMethod) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if pm.IsDefault {
			_, err := tx.ExecContext(ctx,
				`UPDATE payment_methods SET is_default = FALSE WHERE student_profile_id = $1 AND is_default`,
				pm.StudentProfileID,
			)
			if err != nil {
				return err
			}
		}

		query := `
			INSERT INTO payment_methods (student_profile_id, gateway_card_id, brand, last4, exp_month, exp_year, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at
		`
		return tx.QueryRowxContext(ctx, query,
			pm.StudentProfileID, pm.GatewayCardID, pm.Brand, pm.Last4, pm.ExpMonth, pm.ExpYear, pm.IsDefault,
		).Scan(&pm.ID, &pm.CreatedAt)
	})
}

func (r *repository) DeleteMethod(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPaymentMethodNotFound
	}
	return nil
}

// The functions below take an explicit querier so the credit ledger can run
// them inside its own transactions.

// Insert writes p and fills in its ID.
func Insert(ctx context.Context, q sqlx.QueryerContext, p *Payment) error {
	query := `
		INSERT INTO payments (student_profile_id, amount, currency, method, purpose, reference_id, gateway_transaction_id, status, payment_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := sqlx.GetContext(ctx, q, &p.ID, query,
		p.StudentProfileID, p.Amount, p.Currency, p.Method, p.Purpose,
		p.ReferenceID, p.GatewayTransactionID, p.Status, p.PaymentDate,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// LockByGatewayID loads the payment for a gateway order id and locks its row.
func LockByGatewayID(ctx context.Context, q sqlx.QueryerContext, gatewayID string) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_transaction_id = $1 FOR UPDATE`

	var p Payment
	if err := sqlx.GetContext(ctx, q, &p, query, gatewayID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func SetStatus(ctx context.Context, e sqlx.ExecerContext, id int, status string) error {
	_, err := e.ExecContext(ctx, `UPDATE payments SET status = $1 WHERE id = $2`, status, id)
	return err
}
