package class

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"swiftfit/internal/db"

	"github.com/jmoiron/sqlx"
)

const classColumns = `id, class_type_id, instructor_id, title, class_date, start_time, end_time, capacity, status, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateType(ctx context.Context, ct *ClassType) error {
	query := `
		INSERT INTO class_types (name, description, duration_minutes)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query, ct.Name, ct.Description, ct.DurationMinutes).
		Scan(&ct.ID, &ct.CreatedAt)
}

func (r *repository) ListTypes(ctx context.Context) ([]ClassType, error) {
	types := []ClassType{}
	err := r.db.SelectContext(ctx, &types,
		`SELECT id, name, description, duration_minutes, created_at FROM class_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (r *repository) TypeExists(ctx context.Context, id int) (bool, error) {
	return db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM class_types WHERE id = $1)`, id)
}

func (r *repository) Create(ctx context.Context, c *Class) error {
	query := `
		INSERT INTO classes (class_type_id, instructor_id, title, class_date, start_time, end_time, capacity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query,
		c.ClassTypeID, c.InstructorID, c.Title, c.ClassDate, c.StartTime, c.EndTime, c.Capacity, c.Status,
	).Scan(&c.ID, &c.CreatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int) (*Class, error) {
	return Get(ctx, r.db, id)
}

func (r *repository) ListWithAvailability(ctx context.Context, from, to time.Time) ([]ClassWithAvailability, error) {
	query := `
		SELECT
			c.id, c.class_type_id, c.instructor_id, c.title, c.class_date,
			c.start_time, c.end_time, c.capacity, c.status, c.created_at,
			ct.name AS class_type_name,
			COUNT(b.id) FILTER (WHERE b.status = 'confirmed') AS booked_count
		FROM classes c
		JOIN class_types ct ON ct.id = c.class_type_id
		LEFT JOIN bookings b ON b.class_id = c.id
		WHERE c.start_time >= $1 AND c.start_time < $2
		GROUP BY c.id, ct.name
		ORDER BY c.start_time
	`

	classes := []ClassWithAvailability{}
	if err := r.db.SelectContext(ctx, &classes, query, from, to); err != nil {
		return nil, err
	}
	for i := range classes {
		classes[i].computeAvailability()
	}
	return classes, nil
}

func (r *repository) SetStatus(ctx context.Context, id int, status string) error {
	return SetStatus(ctx, r.db, id, status)
}

// Get loads a class without locking it.
func Get(ctx context.Context, q sqlx.QueryerContext, id int) (*Class, error) {
	return get(ctx, q, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id)
}

// Lock loads a class and takes a row lock on it for the rest of the
// transaction. Booking, cancellation and waitlist changes for one class
// serialize on this lock.
func Lock(ctx context.Context, q sqlx.QueryerContext, id int) (*Class, error) {
	return get(ctx, q, `SELECT `+classColumns+` FROM classes WHERE id = $1 FOR UPDATE`, id)
}

func SetStatus(ctx context.Context, e sqlx.ExecerContext, id int, status string) error {
	result, err := e.ExecContext(ctx, `UPDATE classes SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrClassNotFound
	}
	return nil
}

func get(ctx context.Context, q sqlx.QueryerContext, query string, id int) (*Class, error) {
	var c Class
	if err := sqlx.GetContext(ctx, q, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return &c, nil
}
