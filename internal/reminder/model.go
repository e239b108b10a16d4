package reminder

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"

	// FollowUpDays is how long after a student's last class the
	// come-back reminder goes out.
	FollowUpDays = 30
)

// Date is a calendar day, written to JSON as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"`+DateLayout+`"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d *Date) Scan(src interface{}) error {
	t, ok := src.(time.Time)
	if !ok {
		return fmt.Errorf("reminder: cannot scan %T into Date", src)
	}
	*d = NewDate(t)
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

// Reminder asks a student to come back some time after their last class.
// It is addressed to a student profile, a bare email, or both.
type Reminder struct {
	ID                   int        `db:"id" json:"id"`
	StudentProfileID     *int       `db:"student_profile_id" json:"studentProfileId,omitempty"`
	Email                *string    `db:"email" json:"email,omitempty"`
	LastClassDate        Date       `db:"last_class_date" json:"lastClassDate"`
	ReminderScheduledFor Date       `db:"reminder_scheduled_for" json:"reminderScheduledFor"`
	ReminderSent         bool       `db:"reminder_sent" json:"reminderSent"`
	SentAt               *time.Time `db:"sent_at" json:"sentAt,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
}

// DueReminder is a reminder with its resolved recipient.
type DueReminder struct {
	Reminder
	RecipientEmail string `db:"recipient_email" json:"recipientEmail"`
	RecipientName  string `db:"recipient_name" json:"recipientName"`
}

type ScheduleRequest struct {
	LastClassDate    string `json:"lastClassDate" binding:"required"`
	StudentProfileID *int   `json:"studentProfileId"`
	Email            string `json:"email" binding:"omitempty,email"`
}

type MarkSentRequest struct {
	ReminderID int `json:"reminderId" binding:"required"`
}

type DispatchFailure struct {
	ReminderID int    `json:"reminderId"`
	Error      string `json:"error"`
}

type DispatchResult struct {
	Due      int               `json:"due"`
	Sent     int               `json:"sent"`
	Failed   int               `json:"failed"`
	Failures []DispatchFailure `json:"failures"`
}
