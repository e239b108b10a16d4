package booking

import (
	"context"
	"regexp"
	"testing"
	"time"

	"swiftfit/internal/class"
	"swiftfit/internal/credit"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bookingCols  = []string{"id", "class_id", "student_profile_id", "status", "booked_at", "cancelled_at", "cancellation_type", "credits_used", "purchase_id", "payment_id"}
	classCols    = []string{"id", "class_type_id", "instructor_id", "title", "class_date", "start_time", "end_time", "capacity", "status", "created_at"}
	purchaseCols = []string{"id", "student_profile_id", "purchase_type", "package_id", "membership_id", "credits_remaining",
		"credits_total", "purchased_at", "expires_at", "is_active", "auto_renew", "next_billing_date", "payment_id"}
)

var (
	lockClass    = regexp.QuoteMeta("FROM classes WHERE id = $1 FOR UPDATE")
	hasBooking   = regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM bookings WHERE class_id = $1 AND student_profile_id = $2")
	countBooking = regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE class_id = $1 AND status = 'confirmed'")
)

func setupMock(t *testing.T) (*sqlx.DB, Repository, sqlmock.Sqlmock) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	dbx := sqlx.NewDb(raw, "sqlmock")
	return dbx, NewRepository(dbx), mock
}

func classRow(id, capacity int, status string, start time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(classCols).
		AddRow(id, 1, nil, "Reformer", start, start, start.Add(time.Hour), capacity, status, start.Add(-72*time.Hour))
}

func TestCreate(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	start := now.Add(48 * time.Hour)

	t.Run("Consumes one credit and books", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockClass).WithArgs(3).WillReturnRows(classRow(3, 10, class.StatusScheduled, start))
		mock.ExpectQuery(hasBooking).WithArgs(3, 4).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(countBooking).WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))
		mock.ExpectQuery(regexp.QuoteMeta("LIMIT 1 FOR UPDATE")).
			WithArgs(4, now).
			WillReturnRows(sqlmock.NewRows(purchaseCols).
				AddRow(10, 4, credit.TypePackage, 2, nil, 5, 10, now, start, true, false, nil, nil))
		mock.ExpectExec(regexp.QuoteMeta("SET credits_remaining = credits_remaining - 1")).
			WithArgs(10).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings")).
			WithArgs(3, 4, StatusConfirmed, now, 1, 10, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
		mock.ExpectCommit()

		b, err := repo.Create(context.Background(), 3, 4, now)
		require.NoError(t, err)
		assert.Equal(t, 100, b.ID)
		assert.Equal(t, 1, b.CreditsUsed)
		assert.Equal(t, 10, *b.PurchaseID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Full class is rejected before any credit is taken", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockClass).WithArgs(3).WillReturnRows(classRow(3, 10, class.StatusScheduled, start))
		mock.ExpectQuery(hasBooking).WithArgs(3, 4).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(countBooking).WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
		mock.ExpectRollback()

		_, err := repo.Create(context.Background(), 3, 4, now)
		assert.ErrorIs(t, err, ErrClassFull)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already booked", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockClass).WithArgs(3).WillReturnRows(classRow(3, 10, class.StatusScheduled, start))
		mock.ExpectQuery(hasBooking).WithArgs(3, 4).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := repo.Create(context.Background(), 3, 4, now)
		assert.ErrorIs(t, err, ErrAlreadyBooked)
	})

	t.Run("Cancelled class", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockClass).WithArgs(3).WillReturnRows(classRow(3, 10, class.StatusCancelled, start))
		mock.ExpectRollback()

		_, err := repo.Create(context.Background(), 3, 4, now)
		assert.ErrorIs(t, err, ErrClassNotBookable)
	})

	t.Run("Missing class", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockClass).WithArgs(3).WillReturnRows(sqlmock.NewRows(classCols))
		mock.ExpectRollback()

		_, err := repo.Create(context.Background(), 3, 4, now)
		assert.ErrorIs(t, err, class.ErrClassNotFound)
	})

	t.Run("No credits", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockClass).WithArgs(3).WillReturnRows(classRow(3, 10, class.StatusScheduled, start))
		mock.ExpectQuery(hasBooking).WithArgs(3, 4).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(countBooking).WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(regexp.QuoteMeta("LIMIT 1 FOR UPDATE")).WithArgs(4, now).WillReturnRows(sqlmock.NewRows(purchaseCols))
		mock.ExpectRollback()

		_, err := repo.Create(context.Background(), 3, 4, now)
		assert.ErrorIs(t, err, credit.ErrInsufficientCredits)
	})
}

func TestCancel(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	lockBooking := regexp.QuoteMeta("FROM bookings WHERE id = $1 FOR UPDATE")
	update := regexp.QuoteMeta("UPDATE bookings SET status = $2, cancellation_type = $3, cancelled_at = $4")
	refund := regexp.QuoteMeta("SET credits_remaining = credits_remaining + $2")

	confirmed := func() *sqlmock.Rows {
		return sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, StatusConfirmed, now, nil, nil, 1, 10, nil)
	}

	t.Run("Standard cancellation refunds the credit", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockBooking).WithArgs(100).WillReturnRows(confirmed())
		mock.ExpectQuery(update).
			WithArgs(100, StatusCancelled, CancellationStandard, now).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, StatusCancelled, now, now, CancellationStandard, 1, 10, nil))
		mock.ExpectExec(refund).WithArgs(10, 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		b, refunded, err := repo.Cancel(context.Background(), 100, false, now)
		require.NoError(t, err)
		assert.Equal(t, 1, refunded)
		assert.Equal(t, StatusCancelled, b.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Late cancellation keeps the credit", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockBooking).WithArgs(100).WillReturnRows(confirmed())
		mock.ExpectQuery(update).
			WithArgs(100, StatusLateCancel, CancellationLate, now).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, StatusLateCancel, now, now, CancellationLate, 1, 10, nil))
		mock.ExpectCommit()

		b, refunded, err := repo.Cancel(context.Background(), 100, true, now)
		require.NoError(t, err)
		assert.Zero(t, refunded)
		assert.Equal(t, StatusLateCancel, b.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already cancelled", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockBooking).
			WithArgs(100).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, StatusCancelled, now, now, CancellationStandard, 1, 10, nil))
		mock.ExpectRollback()

		_, _, err := repo.Cancel(context.Background(), 100, false, now)
		assert.ErrorIs(t, err, ErrBookingNotCancellable)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	lockBooking := regexp.QuoteMeta("FROM bookings WHERE id = $1 AND ($2 = 0 OR class_id = $2) FOR UPDATE")
	update := regexp.QuoteMeta("UPDATE bookings SET status = $2 WHERE id = $1 RETURNING")

	t.Run("Marks attended", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockBooking).WithArgs(100, 0).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, StatusConfirmed, now, nil, nil, 1, 10, nil))
		mock.ExpectQuery(update).WithArgs(100, StatusAttended).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, StatusAttended, now, nil, nil, 1, 10, nil))
		mock.ExpectCommit()

		b, err := repo.UpdateStatus(ctx, 100, 0, StatusAttended)
		require.NoError(t, err)
		assert.Equal(t, StatusAttended, b.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Booking of another class", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockBooking).WithArgs(101, 3).WillReturnRows(sqlmock.NewRows(bookingCols))
		mock.ExpectRollback()

		_, err := repo.UpdateStatus(ctx, 101, 3, StatusNoShow)
		assert.ErrorIs(t, err, ErrBookingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No-show reverts to confirmed", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockBooking).WithArgs(100, 0).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, StatusNoShow, now, nil, nil, 1, 10, nil))
		mock.ExpectQuery(update).WithArgs(100, StatusConfirmed).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, StatusConfirmed, now, nil, nil, 1, 10, nil))
		mock.ExpectCommit()

		b, err := repo.UpdateStatus(ctx, 100, 0, StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, b.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Cancelled booking cannot take its seat back", func(t *testing.T) {
		for _, status := range []string{StatusCancelled, StatusLateCancel} {
			_, repo, mock := setupMock(t)

			mock.ExpectBegin()
			mock.ExpectQuery(lockBooking).WithArgs(100, 0).
				WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, status, now, now, CancellationStandard, 1, 10, nil))
			mock.ExpectRollback()

			_, err := repo.UpdateStatus(ctx, 100, 0, StatusConfirmed)
			assert.ErrorIs(t, err, ErrBookingNotRevertible, status)
			assert.NoError(t, mock.ExpectationsWereMet())
		}
	})

	t.Run("Second confirmed booking maps to already booked", func(t *testing.T) {
		_, repo, mock := setupMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockBooking).WithArgs(100, 0).
			WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, StatusAttended, now, nil, nil, 1, 10, nil))
		mock.ExpectQuery(update).WithArgs(100, StatusConfirmed).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "uniq_bookings_confirmed_per_student"})
		mock.ExpectRollback()

		_, err := repo.UpdateStatus(ctx, 100, 0, StatusConfirmed)
		assert.ErrorIs(t, err, ErrAlreadyBooked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCancelClass(t *testing.T) {
	_, repo, mock := setupMock(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockClass).WithArgs(3).WillReturnRows(classRow(3, 10, class.StatusScheduled, now.Add(time.Hour)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE class_id = $1 AND status = 'confirmed' ORDER BY id FOR UPDATE")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(100, 3, 4, StatusConfirmed, now, nil, nil, 1, 10, nil).
			AddRow(101, 3, 5, StatusConfirmed, now, nil, nil, 0, 11, nil))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings SET status = $2")).
		WithArgs(100, StatusCancelled, CancellationClass, now).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 3, 4, StatusCancelled, now, now, CancellationClass, 1, 10, nil))
	mock.ExpectExec(regexp.QuoteMeta("SET credits_remaining = credits_remaining + $2")).
		WithArgs(10, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings SET status = $2")).
		WithArgs(101, StatusCancelled, CancellationClass, now).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(101, 3, 5, StatusCancelled, now, now, CancellationClass, 0, 11, nil))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM waitlist_entries WHERE class_id = $1")).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE classes SET status = $1 WHERE id = $2")).
		WithArgs(class.StatusCancelled, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	released, err := repo.CancelClass(context.Background(), 3, now)
	require.NoError(t, err)
	assert.Len(t, released, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupContact(t *testing.T) {
	dbx, _, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM student_profiles sp JOIN users u ON u.id = sp.user_id WHERE sp.id = $1")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"name", "email"}).AddRow("Ana", "ana@example.com"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_profiles sp")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"name", "email"}))

	c, err := LookupContact(context.Background(), dbx, 4)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", c.Email)

	_, err = LookupContact(context.Background(), dbx, 5)
	assert.ErrorIs(t, err, ErrStudentNotFound)
}
