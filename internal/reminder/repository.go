package reminder

import (
	"context"
	"time"

	"swiftfit/internal/db"

	"github.com/jmoiron/sqlx"
)

const reminderColumns = `id, student_profile_id, email, last_class_date, reminder_scheduled_for, reminder_sent, sent_at, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rem *Reminder) error {
	query := `
		INSERT INTO class_reminders (student_profile_id, email, last_class_date, reminder_scheduled_for)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + reminderColumns
	err := r.db.GetContext(ctx, rem, query,
		rem.StudentProfileID, rem.Email, rem.LastClassDate, rem.ReminderScheduledFor,
	)
	if db.IsForeignKeyViolation(err, "") {
		return ErrInvalidStudentProfile
	}
	return err
}

// Due lists unsent reminders scheduled for today or earlier. The recipient
// is the reminder's own email when set, else the profile owner's.
func (r *repository) Due(ctx context.Context, today time.Time) ([]DueReminder, error) {
	query := `
		SELECT r.id, r.student_profile_id, r.email, r.last_class_date, r.reminder_scheduled_for,
			r.reminder_sent, r.sent_at, r.created_at,
			COALESCE(r.email, u.email, '') AS recipient_email,
			COALESCE(u.name, '') AS recipient_name
		FROM class_reminders r
		LEFT JOIN student_profiles sp ON sp.id = r.student_profile_id
		LEFT JOIN users u ON u.id = sp.user_id
		WHERE NOT r.reminder_sent AND r.reminder_scheduled_for <= $1
		ORDER BY r.reminder_scheduled_for, r.id
	`
	due := []DueReminder{}
	if err := r.db.SelectContext(ctx, &due, query, today); err != nil {
		return nil, err
	}
	return due, nil
}

func (r *repository) MarkSent(ctx context.Context, id int, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE class_reminders SET reminder_sent = TRUE, sent_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrReminderNotFound
	}
	return nil
}
