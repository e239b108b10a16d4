package class

import "time"

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type ClassType struct {
	ID              int       `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type Class struct {
	ID           int       `db:"id" json:"id"`
	ClassTypeID  int       `db:"class_type_id" json:"class_type_id"`
	InstructorID *int      `db:"instructor_id" json:"instructor_id,omitempty"`
	Title        string    `db:"title" json:"title"`
	ClassDate    time.Time `db:"class_date" json:"class_date"`
	StartTime    time.Time `db:"start_time" json:"start_time"`
	EndTime      time.Time `db:"end_time" json:"end_time"`
	Capacity     int       `db:"capacity" json:"capacity"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type ClassWithAvailability struct {
	Class
	ClassTypeName string `db:"class_type_name" json:"class_type_name"`
	BookedCount   int    `db:"booked_count" json:"booked_count"`
	SpotsLeft     int    `db:"-" json:"spots_left"`
	IsFull        bool   `db:"-" json:"is_full"`
}

func (c *ClassWithAvailability) computeAvailability() {
	c.SpotsLeft = c.Capacity - c.BookedCount
	if c.SpotsLeft < 0 {
		c.SpotsLeft = 0
	}
	c.IsFull = c.SpotsLeft == 0
}

type CreateClassTypeRequest struct {
	Name            string `json:"name" binding:"required,max=255"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"durationMinutes" binding:"required,gte=1"`
}

type CreateClassRequest struct {
	ClassTypeID  int       `json:"classTypeId" binding:"required"`
	InstructorID *int      `json:"instructorId"`
	Title        string    `json:"title" binding:"required,max=255"`
	StartTime    time.Time `json:"startTime" binding:"required"`
	EndTime      time.Time `json:"endTime" binding:"required"`
	Capacity     int       `json:"capacity" binding:"required,gte=1"`
}
