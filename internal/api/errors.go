package api

import (
	"errors"
	"net/http"

	"swiftfit/internal/logger"

	"github.com/gin-gonic/gin"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindUpstream
)

// Error is a domain error that knows how it is presented over HTTP.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Upstream(code, message string) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: message}
}

var (
	ErrUnauthenticated = Unauthorized("UNAUTHENTICATED", "user not authenticated")
	ErrForbidden       = Forbidden("FORBIDDEN", "insufficient permissions")
	ErrInvalidID       = Validation("INVALID_ID", "invalid id")
)

// RespondError writes err to the response. Unknown errors become a 500 that
// carries the error text.
func RespondError(c *gin.Context, err error) {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Kind == KindUpstream {
			logger.Error("upstream failure", "path", c.FullPath(), logger.FieldError, err)
		}
		c.JSON(appErr.Status(), ErrorResponse{Error: appErr.Message, Code: appErr.Code})
		return
	}

	logger.Error("unhandled error", "path", c.FullPath(), logger.FieldError, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal server error",
		Details: err.Error(),
	})
}
