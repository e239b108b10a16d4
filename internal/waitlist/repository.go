package waitlist

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"swiftfit/internal/booking"
	"swiftfit/internal/class"
	"swiftfit/internal/db"

	"github.com/jmoiron/sqlx"
)

const entryColumns = `id, class_id, student_profile_id, position, notified, created_at`

// bookedByStudent holds for entries whose student already has a confirmed
// booking for the class.
const bookedByStudent = `EXISTS (SELECT 1 FROM bookings b WHERE b.class_id = w.class_id AND b.student_profile_id = w.student_profile_id AND b.status = 'confirmed')`

const detailsQuery = `
	SELECT w.id, w.class_id, w.student_profile_id, w.position, w.notified, w.created_at,
		c.title AS class_title, c.start_time AS class_start,
		u.name AS student_name, u.email AS student_email
	FROM waitlist_entries w
	JOIN classes c ON c.id = w.class_id
	JOIN student_profiles sp ON sp.id = w.student_profile_id
	JOIN users u ON u.id = sp.user_id
`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Join appends the student to the end of the class waitlist. Only full
// classes take waitlist entries. The class row lock keeps concurrent joins
// from taking the same position.
func (r *repository) Join(ctx context.Context, classID, profileID int, now time.Time) (*Entry, error) {
	var e Entry

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		c, err := class.Lock(ctx, tx, classID)
		if err != nil {
			return err
		}
		if c.Status != class.StatusScheduled {
			return booking.ErrClassNotBookable
		}
		if !c.StartTime.After(now) {
			return booking.ErrClassStarted
		}

		booked, err := booking.HasConfirmed(ctx, tx, classID, profileID)
		if err != nil {
			return err
		}
		if booked {
			return booking.ErrAlreadyBooked
		}

		confirmed, err := booking.CountConfirmed(ctx, tx, classID)
		if err != nil {
			return err
		}
		if confirmed < c.Capacity {
			return ErrClassHasSpots
		}

		waiting, err := db.Exists(ctx, tx,
			`SELECT EXISTS(SELECT 1 FROM waitlist_entries WHERE class_id = $1 AND student_profile_id = $2)`,
			classID, profileID,
		)
		if err != nil {
			return err
		}
		if waiting {
			return ErrAlreadyWaitlisted
		}

		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM waitlist_entries WHERE class_id = $1`, classID); err != nil {
			return err
		}

		query := `
			INSERT INTO waitlist_entries (class_id, student_profile_id, position, notified, created_at)
			VALUES ($1, $2, $3, FALSE, $4)
			RETURNING ` + entryColumns
		err = tx.GetContext(ctx, &e, query, classID, profileID, count+1, now)
		if db.IsUniqueViolation(err, "waitlist_entries_class_student_key") {
			return ErrAlreadyWaitlisted
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Entry, error) {
	return getEntry(ctx, r.db, `SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, id)
}

// Leave removes an entry and closes the gap it leaves behind.
func (r *repository) Leave(ctx context.Context, id int) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		e, err := getEntry(ctx, tx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if _, err := class.Lock(ctx, tx, e.ClassID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrEntryNotFound
		}

		_, err = compact(ctx, tx, e.ClassID)
		return err
	})
}

func (r *repository) ListByClass(ctx context.Context, classID int) ([]EntryWithDetails, error) {
	entries := []EntryWithDetails{}
	query := detailsQuery + ` WHERE w.class_id = $1 ORDER BY w.position`
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByProfile(ctx context.Context, profileID int) ([]EntryWithDetails, error) {
	entries := []EntryWithDetails{}
	query := detailsQuery + ` WHERE w.student_profile_id = $1 ORDER BY c.start_time`
	if err := r.db.SelectContext(ctx, &entries, query, profileID); err != nil {
		return nil, err
	}
	return entries, nil
}

// Promote hands freed seats of a class to the head of its waitlist. With
// autoPromote each selected student is booked for free and leaves the list;
// otherwise they are only flagged as notified and keep their place. Students
// who already hold a booking never take a seat from the ones behind them: in
// auto mode their entries are dropped first, in notify mode they are passed
// over. Everything happens under the class row lock, so concurrent passes
// cannot pick the same entries.
func (r *repository) Promote(ctx context.Context, classID int, autoPromote bool, now time.Time) (*PromoteResult, error) {
	result := &PromoteResult{ClassID: classID, Mode: ModeNotify, Promotions: []Promotion{}}
	if autoPromote {
		result.Mode = ModeAutoBook
	}

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		c, err := class.Lock(ctx, tx, classID)
		if err != nil {
			return err
		}
		if c.Status != class.StatusScheduled {
			return booking.ErrClassNotBookable
		}

		confirmed, err := booking.CountConfirmed(ctx, tx, classID)
		if err != nil {
			return err
		}
		result.SpotsAvailable = c.Capacity - confirmed
		if result.SpotsAvailable <= 0 {
			result.SpotsAvailable = 0
			return tx.GetContext(ctx, &result.Remaining, `SELECT COUNT(*) FROM waitlist_entries WHERE class_id = $1`, classID)
		}

		if autoPromote {
			var stale []Entry
			query := `DELETE FROM waitlist_entries w WHERE w.class_id = $1 AND ` + bookedByStudent + ` RETURNING ` + entryColumns
			if err := tx.SelectContext(ctx, &stale, query, classID); err != nil {
				return err
			}
			for _, e := range stale {
				result.Promotions = append(result.Promotions, Promotion{
					EntryID:          e.ID,
					StudentProfileID: e.StudentProfileID,
					Position:         e.Position,
					Action:           ActionSkipped,
				})
			}
		}

		var head []Entry
		query := `SELECT ` + entryColumns + ` FROM waitlist_entries w WHERE w.class_id = $1 AND NOT ` + bookedByStudent + ` ORDER BY w.position LIMIT $2 FOR UPDATE`
		if err := tx.SelectContext(ctx, &head, query, classID, result.SpotsAvailable); err != nil {
			return err
		}

		for _, e := range head {
			p := Promotion{EntryID: e.ID, StudentProfileID: e.StudentProfileID, Position: e.Position}
			if autoPromote {
				if err := book(ctx, tx, &e, &p, now); err != nil {
					return err
				}
				result.Promoted++
			} else {
				if _, err := tx.ExecContext(ctx, `UPDATE waitlist_entries SET notified = TRUE WHERE id = $1`, e.ID); err != nil {
					return err
				}
				p.Action = ActionNotified
				result.Notified++
			}
			result.Promotions = append(result.Promotions, p)
		}

		result.Remaining, err = compact(ctx, tx, classID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// book turns a waitlist entry into a free confirmed booking and removes the
// entry.
func book(ctx context.Context, tx *sqlx.Tx, e *Entry, p *Promotion, now time.Time) error {
	b := &booking.Booking{
		ClassID:          e.ClassID,
		StudentProfileID: e.StudentProfileID,
		BookedAt:         now,
		CreditsUsed:      0,
	}
	if err := booking.InsertConfirmed(ctx, tx, b); err != nil {
		return err
	}
	p.Action = ActionBooked
	p.BookingID = &b.ID

	_, err := tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, e.ID)
	return err
}

// compact renumbers the remaining entries of a class to 1..N in position
// order and returns N. The (class_id, position) constraint is deferred, so
// the intermediate duplicates are fine.
func compact(ctx context.Context, tx *sqlx.Tx, classID int) (int, error) {
	query := `
		UPDATE waitlist_entries w SET position = r.rn
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY position) AS rn
			FROM waitlist_entries WHERE class_id = $1
		) r
		WHERE w.id = r.id AND w.position <> r.rn
	`
	if _, err := tx.ExecContext(ctx, query, classID); err != nil {
		return 0, err
	}

	var n int
	err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM waitlist_entries WHERE class_id = $1`, classID)
	return n, err
}

func (r *repository) GetClass(ctx context.Context, classID int) (*class.Class, error) {
	return class.Get(ctx, r.db, classID)
}

func (r *repository) Contact(ctx context.Context, profileID int) (*booking.Contact, error) {
	return booking.LookupContact(ctx, r.db, profileID)
}

func getEntry(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*Entry, error) {
	var e Entry
	if err := sqlx.GetContext(ctx, q, &e, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}
