package payment

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

// ListPayments returns the caller's payments. Staff may pass studentProfileId.
// GET /payments
func (h *Handler) ListPayments(c *gin.Context) {
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

	payments, err := h.service.ListPayments(c.Request.Context(), profileID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// ListAllPayments is the admin ledger view.
// GET /admin/payments
func (h *Handler) ListAllPayments(c *gin.Context) {
	limit, ok := api.QueryInt(c, "limit", 50)
	if !ok {
		return
	}
	offset, ok := api.QueryInt(c, "offset", 0)
	if !ok {
		return
	}

	payments, err := h.service.ListAllPayments(c.Request.Context(), limit, offset)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// GET /payment-methods
func (h *Handler) ListMethods(c *gin.Context) {
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

	methods, err := h.service.ListMethods(c.Request.Context(), profileID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, methods)
}

// POST /payment-methods
func (h *Handler) AddMethod(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}

	var req CreatePaymentMethodRequest
	if !api.BindJSON(c, &req) {
		return
	}

	profileID, err := auth.TargetProfile(id, req.StudentProfileID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	pm, err := h.service.AddMethod(c.Request.Context(), profileID, req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pm)
}

// DELETE /payment-methods/:id
func (h *Handler) RemoveMethod(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}
	methodID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.RemoveMethod(c.Request.Context(), id, methodID); err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Payment method removed"})
}
