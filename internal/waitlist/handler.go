package waitlist

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

// POST /waitlist
func (h *Handler) Join(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}

	var req JoinRequest
	if !api.BindJSON(c, &req) {
		return
	}

	profileID, err := auth.TargetProfile(id, req.StudentProfileID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	entry, err := h.service.Join(c.Request.Context(), profileID, req.ClassID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// DELETE /waitlist/:id
func (h *Handler) Leave(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}
	entryID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Leave(c.Request.Context(), id, entryID); err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "left waitlist"})
}

// GET /waitlist
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

	entries, err := h.service.ListForProfile(c.Request.Context(), profileID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GET /classes/:id/waitlist
func (h *Handler) ListForClass(c *gin.Context) {
	classID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	entries, err := h.service.ListForClass(c.Request.Context(), classID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Promote fills freed seats from the head of a class waitlist.
// POST /waitlist/promote
func (h *Handler) Promote(c *gin.Context) {
	var req PromoteRequest
	if !api.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Promote(c.Request.Context(), req.ClassID, req.AutoPromote)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
