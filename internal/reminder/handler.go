package reminder

import (
	"net/http"

	"swiftfit/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GET /class-reminders/due
func (h *Handler) Due(c *gin.Context) {
	due, err := h.service.Due(c.Request.Context())
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, due)
}

// POST /class-reminders/schedule
func (h *Handler) Schedule(c *gin.Context) {
	var req ScheduleRequest
	if !api.BindJSON(c, &req) {
		return
	}

	rem, err := h.service.Schedule(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rem)
}

// POST /class-reminders/mark-sent
func (h *Handler) MarkSent(c *gin.Context) {
	var req MarkSentRequest
	if !api.BindJSON(c, &req) {
		return
	}

	if err := h.service.MarkSent(c.Request.Context(), req.ReminderID); err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "reminder marked as sent"})
}

// GET /cron/send-reminders
func (h *Handler) Dispatch(c *gin.Context) {
	result, err := h.service.Dispatch(c.Request.Context())
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
