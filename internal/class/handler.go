package class

import (
	"net/http"
	"time"

	"swiftfit/internal/api"

	"github.com/gin-gonic/gin"
)

const (
	dateLayout       = "2006-01-02"
	defaultListRange = 14 * 24 * time.Hour
)

type Handler struct {
	service Service
	now     func() time.Time
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

// POST /class-types
func (h *Handler) CreateType(c *gin.Context) {
	var req CreateClassTypeRequest
	if !api.BindJSON(c, &req) {
		return
	}

	ct, err := h.service.CreateType(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ct)
}

// GET /class-types
func (h *Handler) ListTypes(c *gin.Context) {
	types, err := h.service.ListTypes(c.Request.Context())
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

// POST /classes
func (h *Handler) Create(c *gin.Context) {
	var req CreateClassRequest
	if !api.BindJSON(c, &req) {
		return
	}

	class, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, class)
}

// List returns classes starting in [from, to). Both bounds are YYYY-MM-DD
// and default to today and two weeks later.
// GET /classes
func (h *Handler) List(c *gin.Context) {
	now := h.now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(defaultListRange)

	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(dateLayout, v); err != nil {
			api.RespondError(c, ErrInvalidDateRange)
			return
		}
		if c.Query("to") == "" {
			to = from.Add(defaultListRange)
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(dateLayout, v); err != nil {
			api.RespondError(c, ErrInvalidDateRange)
			return
		}
	}

	classes, err := h.service.List(c.Request.Context(), from, to)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, classes)
}

// GET /classes/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	class, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, class)
}

// POST /classes/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
