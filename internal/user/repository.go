package user

import (
	"context"
	"database/sql"
	"errors"

	"swiftfit/internal/auth"
	"swiftfit/internal/db"

	"github.com/jmoiron/sqlx"
)

const selectUser = `
	SELECT u.id, u.name, u.email, u.password_hash, u.role, u.email_verified, u.created_at,
		sp.id AS student_profile_id
	FROM users u
	LEFT JOIN student_profiles sp ON sp.user_id = u.id
`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, u *User, phone string) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO users (name, email, password_hash, role)
			VALUES ($1, $2, $3, $4)
			RETURNING id, email_verified, created_at
		`
		err := tx.QueryRowxContext(ctx, query, u.Name, u.Email, u.PasswordHash, u.Role).
			Scan(&u.ID, &u.EmailVerified, &u.CreatedAt)
		if db.IsUniqueViolation(err, "users_email_key") {
			return ErrEmailExists
		}
		if err != nil {
			return err
		}

		if u.Role != auth.RoleStudent {
			return nil
		}
		var profileID int
		if err := tx.GetContext(ctx, &profileID,
			`INSERT INTO student_profiles (user_id, phone) VALUES ($1, $2) RETURNING id`, u.ID, phone,
		); err != nil {
			return err
		}
		u.StudentProfileID = &profileID
		return nil
	})
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.find(ctx, selectUser+` WHERE u.email = $1`, email)
}

func (r *repository) FindByID(ctx context.Context, id int) (*User, error) {
	return r.find(ctx, selectUser+` WHERE u.id = $1`, id)
}

func (r *repository) find(ctx context.Context, query string, arg interface{}) (*User, error) {
	var u User
	if err := r.db.GetContext(ctx, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *repository) MarkEmailVerified(ctx context.Context, email string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET email_verified = TRUE WHERE email = $1`, email)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
