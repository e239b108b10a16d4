package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"swiftfit/internal/class"
	"swiftfit/internal/credit"
	"swiftfit/internal/db"

	"github.com/jmoiron/sqlx"
)

const bookingColumns = `id, class_id, student_profile_id, status, booked_at, cancelled_at, cancellation_type, credits_used, purchase_id, payment_id`

const detailsQuery = `
	SELECT b.id, b.class_id, b.student_profile_id, b.status, b.booked_at, b.cancelled_at,
		b.cancellation_type, b.credits_used, b.purchase_id, b.payment_id,
		c.title AS class_title, c.start_time AS class_start,
		u.name AS student_name, u.email AS student_email
	FROM bookings b
	JOIN classes c ON c.id = b.class_id
	JOIN student_profiles sp ON sp.id = b.student_profile_id
	JOIN users u ON u.id = sp.user_id
`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, classID, profileID int, now time.Time) (*Booking, error) {
	var b *Booking

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		c, err := class.Lock(ctx, tx, classID)
		if err != nil {
			return err
		}
		if c.Status != class.StatusScheduled {
			return ErrClassNotBookable
		}
		if !c.StartTime.After(now) {
			return ErrClassStarted
		}

		booked, err := HasConfirmed(ctx, tx, classID, profileID)
		if err != nil {
			return err
		}
		if booked {
			return ErrAlreadyBooked
		}

		confirmed, err := CountConfirmed(ctx, tx, classID)
		if err != nil {
			return err
		}
		if confirmed >= c.Capacity {
			return ErrClassFull
		}

		p, used, err := credit.Consume(ctx, tx, profileID, now)
		if err != nil {
			return err
		}

		b = &Booking{
			ClassID:          classID,
			StudentProfileID: profileID,
			BookedAt:         now,
			CreditsUsed:      used,
			PurchaseID:       &p.ID,
		}
		return InsertConfirmed(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Booking, error) {
	return getBooking(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *repository) Cancel(ctx context.Context, id int, late bool, now time.Time) (*Booking, int, error) {
	var (
		b        *Booking
		refunded int
	)

	status, kind := StatusCancelled, CancellationStandard
	if late {
		status, kind = StatusLateCancel, CancellationLate
	}

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := getBooking(ctx, tx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		if current.Status != StatusConfirmed {
			return ErrBookingNotCancellable
		}

		b, err = release(ctx, tx, current, status, kind, !late, now)
		if err != nil {
			return err
		}
		if !late {
			refunded = current.CreditsUsed
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return b, refunded, nil
}

// UpdateStatus sets confirmed again only on attended or no-show bookings;
// a released seat is never taken back past the capacity check.
func (r *repository) UpdateStatus(ctx context.Context, id, classID int, status string) (*Booking, error) {
	var b *Booking

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := getBooking(ctx, tx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 AND ($2 = 0 OR class_id = $2) FOR UPDATE`, id, classID)
		if err != nil {
			return err
		}
		if status == StatusConfirmed && (current.Status == StatusCancelled || current.Status == StatusLateCancel) {
			return ErrBookingNotRevertible
		}

		b, err = getBooking(ctx, tx, `UPDATE bookings SET status = $2 WHERE id = $1 RETURNING `+bookingColumns, id, status)
		if db.IsUniqueViolation(err, "uniq_bookings_confirmed_per_student") {
			return ErrAlreadyBooked
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repository) ListByProfile(ctx context.Context, profileID int) ([]BookingWithDetails, error) {
	bookings := []BookingWithDetails{}
	query := detailsQuery + ` WHERE b.student_profile_id = $1 ORDER BY c.start_time DESC`
	if err := r.db.SelectContext(ctx, &bookings, query, profileID); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repository) ListByClass(ctx context.Context, classID int) ([]BookingWithDetails, error) {
	bookings := []BookingWithDetails{}
	query := detailsQuery + ` WHERE b.class_id = $1 ORDER BY b.booked_at`
	if err := r.db.SelectContext(ctx, &bookings, query, classID); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repository) GetClass(ctx context.Context, classID int) (*class.Class, error) {
	return class.Get(ctx, r.db, classID)
}

func (r *repository) CompleteClass(ctx context.Context, classID int) error {
	return class.SetStatus(ctx, r.db, classID, class.StatusCompleted)
}

// CancelClass cancels the class, releases every confirmed booking with a
// full refund and drops its waitlist. It returns the released bookings.
func (r *repository) CancelClass(ctx context.Context, classID int, now time.Time) ([]Booking, error) {
	released := []Booking{}

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		c, err := class.Lock(ctx, tx, classID)
		if err != nil {
			return err
		}
		switch c.Status {
		case class.StatusCancelled:
			return class.ErrClassAlreadyCancelled
		case class.StatusCompleted:
			return class.ErrClassCompleted
		}

		var confirmed []Booking
		query := `SELECT ` + bookingColumns + ` FROM bookings WHERE class_id = $1 AND status = 'confirmed' ORDER BY id FOR UPDATE`
		if err := sqlx.SelectContext(ctx, tx, &confirmed, query, classID); err != nil {
			return err
		}

		for i := range confirmed {
			b, err := release(ctx, tx, &confirmed[i], StatusCancelled, CancellationClass, true, now)
			if err != nil {
				return err
			}
			released = append(released, *b)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE class_id = $1`, classID); err != nil {
			return err
		}
		return class.SetStatus(ctx, tx, classID, class.StatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (r *repository) Contact(ctx context.Context, profileID int) (*Contact, error) {
	return LookupContact(ctx, r.db, profileID)
}

// release moves a locked confirmed booking to status and optionally puts its
// credits back on the purchase that paid for it.
func release(ctx context.Context, tx sqlx.ExtContext, b *Booking, status, kind string, refund bool, now time.Time) (*Booking, error) {
	query := `
		UPDATE bookings SET status = $2, cancellation_type = $3, cancelled_at = $4
		WHERE id = $1
		RETURNING ` + bookingColumns
	updated, err := getBooking(ctx, tx, query, b.ID, status, kind, now)
	if err != nil {
		return nil, err
	}

	if refund && b.PurchaseID != nil {
		if err := credit.Refund(ctx, tx, *b.PurchaseID, b.CreditsUsed); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// The functions below run on any querier so the waitlist can use them
// inside its own class-locked transactions.

// CountConfirmed counts the confirmed bookings of a class.
func CountConfirmed(ctx context.Context, q sqlx.QueryerContext, classID int) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM bookings WHERE class_id = $1 AND status = 'confirmed'`, classID)
	return n, err
}

func HasConfirmed(ctx context.Context, q sqlx.QueryerContext, classID, profileID int) (bool, error) {
	return db.Exists(ctx, q,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE class_id = $1 AND student_profile_id = $2 AND status = 'confirmed')`,
		classID, profileID,
	)
}

// InsertConfirmed writes b as a confirmed booking and fills in its ID.
func InsertConfirmed(ctx context.Context, q sqlx.QueryerContext, b *Booking) error {
	b.Status = StatusConfirmed
	query := `
		INSERT INTO bookings (class_id, student_profile_id, status, booked_at, credits_used, purchase_id, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := sqlx.GetContext(ctx, q, &b.ID, query,
		b.ClassID, b.StudentProfileID, b.Status, b.BookedAt, b.CreditsUsed, b.PurchaseID, b.PaymentID,
	)
	if db.IsUniqueViolation(err, "uniq_bookings_confirmed_per_student") {
		return ErrAlreadyBooked
	}
	return err
}

// LookupContact returns the name and email of a student profile's user.
func LookupContact(ctx context.Context, q sqlx.QueryerContext, profileID int) (*Contact, error) {
	var c Contact
	query := `SELECT u.name, u.email FROM student_profiles sp JOIN users u ON u.id = sp.user_id WHERE sp.id = $1`
	if err := sqlx.GetContext(ctx, q, &c, query, profileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return &c, nil
}

func getBooking(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*Booking, error) {
	var b Booking
	if err := sqlx.GetContext(ctx, q, &b, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}
