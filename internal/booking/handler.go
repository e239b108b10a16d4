package booking

import (
	"net/http"

	"swiftfit/internal/api"
	"swiftfit/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Create books a class for the caller, or for studentProfileId when staff
// books on a student's behalf. A full class answers 409 CLASS_FULL; the
// client is expected to offer the waitlist.
// POST /bookings
func (h *Handler) Create(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if !api.BindJSON(c, &req) {
		return
	}

	profileID, err := auth.TargetProfile(id, req.StudentProfileID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	b, err := h.service.Create(c.Request.Context(), profileID, req.ClassID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// POST /bookings/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}
	bookingID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), id, bookingID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /bookings
func (h *Handler) ListMine(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}
	requested, ok := api.QueryInt(c, "studentProfileId", 0)
	if !ok {
		return
	}

	profileID, err := auth.TargetProfile(id, requested)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	bookings, err := h.service.ListForProfile(c.Request.Context(), profileID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// GET /classes/:id/bookings
func (h *Handler) ListForClass(c *gin.Context) {
	classID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	bookings, err := h.service.ListForClass(c.Request.Context(), classID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// PUT /bookings/:id/attendance
func (h *Handler) MarkAttendance(c *gin.Context) {
	bookingID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	var req AttendanceRequest
	if !api.BindJSON(c, &req) {
		return
	}

	b, err := h.service.MarkAttendance(c.Request.Context(), bookingID, req.Status)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /attendance
func (h *Handler) BulkAttendance(c *gin.Context) {
	var req BulkAttendanceRequest
	if !api.BindJSON(c, &req) {
		return
	}

	result, err := h.service.BulkAttendance(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
