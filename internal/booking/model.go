package booking

import "time"

const (
	StatusConfirmed  = "confirmed"
	StatusCancelled  = "cancelled"
	StatusAttended   = "attended"
	StatusNoShow     = "no_show"
	StatusLateCancel = "late_cancel"

	CancellationStandard = "standard"
	CancellationLate     = "late"
	CancellationClass    = "class_cancelled"
)

type Booking struct {
	ID               int        `db:"id" json:"id"`
	ClassID          int        `db:"class_id" json:"class_id"`
	StudentProfileID int        `db:"student_profile_id" json:"student_profile_id"`
	Status           string     `db:"status" json:"status"`
	BookedAt         time.Time  `db:"booked_at" json:"booked_at"`
	CancelledAt      *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationType *string    `db:"cancellation_type" json:"cancellation_type,omitempty"`
	CreditsUsed      int        `db:"credits_used" json:"credits_used"`
	PurchaseID       *int       `db:"purchase_id" json:"purchase_id,omitempty"`
	PaymentID        *int       `db:"payment_id" json:"payment_id,omitempty"`
}

type BookingWithDetails struct {
	Booking
	ClassTitle   string    `db:"class_title" json:"class_title"`
	ClassStart   time.Time `db:"class_start" json:"class_start"`
	StudentName  string    `db:"student_name" json:"student_name"`
	StudentEmail string    `db:"student_email" json:"student_email"`
}

// Contact is who booking and waitlist emails go to.
type Contact struct {
	Name  string `db:"name"`
	Email string `db:"email"`
}

type CreateBookingRequest struct {
	ClassID          int `json:"classId" binding:"required"`
	StudentProfileID int `json:"studentProfileId"`
}

type CancelResult struct {
	Booking         *Booking `json:"booking"`
	Late            bool     `json:"late"`
	CreditsRefunded int      `json:"creditsRefunded"`
}

type AttendanceRequest struct {
	Status string `json:"status" binding:"required"`
}

type BulkAttendanceRequest struct {
	ClassID   int   `json:"classId" binding:"required"`
	Attendees []int `json:"attendees"`
	NoShows   []int `json:"noShows"`
}

type AttendanceFailure struct {
	BookingID int    `json:"bookingId"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

type BulkAttendanceResult struct {
	ClassID     int                 `json:"classId"`
	Attended    int                 `json:"attended"`
	NoShows     int                 `json:"noShows"`
	Failed      []AttendanceFailure `json:"failed"`
	ClassStatus string              `json:"classStatus"`
}
