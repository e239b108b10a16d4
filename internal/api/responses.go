package api

type ErrorResponse struct {
	Error   string      `json:"error" example:"something went wrong"`
	Code    string      `json:"code,omitempty" example:"CLASS_FULL"`
	Details interface{} `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Database string `json:"database,omitempty" example:"up"`
}

// FieldError describes one failed validation rule of a request body.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}
