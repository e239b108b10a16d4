package waitlist

import "time"

const (
	ModeAutoBook = "auto_book"
	ModeNotify   = "notify"

	ActionBooked   = "booked"
	ActionNotified = "notified"
	// ActionSkipped marks an entry dropped because the student already held
	// a confirmed booking for the class.
	ActionSkipped = "skipped"
)

// Entry is one student's place in a class waitlist. Positions of a class
// always run 1..N without gaps.
type Entry struct {
	ID               int       `db:"id" json:"id"`
	ClassID          int       `db:"class_id" json:"class_id"`
	StudentProfileID int       `db:"student_profile_id" json:"student_profile_id"`
	Position         int       `db:"position" json:"position"`
	Notified         bool      `db:"notified" json:"notified"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type EntryWithDetails struct {
	Entry
	ClassTitle   string    `db:"class_title" json:"class_title"`
	ClassStart   time.Time `db:"class_start" json:"class_start"`
	StudentName  string    `db:"student_name" json:"student_name"`
	StudentEmail string    `db:"student_email" json:"student_email"`
}

type JoinRequest struct {
	ClassID          int `json:"classId" binding:"required"`
	StudentProfileID int `json:"studentProfileId"`
}

type PromoteRequest struct {
	ClassID     int  `json:"classId" binding:"required"`
	AutoPromote bool `json:"autoPromote"`
}

type Promotion struct {
	EntryID          int    `json:"entryId"`
	StudentProfileID int    `json:"studentProfileId"`
	Position         int    `json:"position"`
	Action           string `json:"action"`
	BookingID        *int   `json:"bookingId,omitempty"`
}

type PromoteResult struct {
	ClassID        int         `json:"classId"`
	Mode           string      `json:"mode"`
	SpotsAvailable int         `json:"spotsAvailable"`
	Promoted       int         `json:"promoted"`
	Notified       int         `json:"notified"`
	Remaining      int         `json:"remaining"`
	Promotions     []Promotion `json:"promotions"`
}
