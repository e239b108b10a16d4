package logger

// Standard field names for consistent logging.
const (
	FieldService   = "service"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldUserID    = "user_id"
	FieldProfileID = "student_profile_id"
	FieldClassID   = "class_id"
	FieldBookingID = "booking_id"
	FieldPurchase  = "purchase_id"
)
