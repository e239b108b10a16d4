package credit

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

// GetStudentCredits returns a student's usable packages and memberships.
// GET /students/:id/credits
func (h *Handler) GetStudentCredits(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}
	profileID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}
	if !id.CanAccessProfile(profileID) {
		api.RespondError(c, api.ErrForbidden)
		return
	}

	credits, err := h.service.ActiveCredits(c.Request.Context(), profileID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, credits)
}

// GET /purchases
func (h *Handler) ListPurchases(c *gin.Context) {
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

	purchases, err := h.service.ListPurchases(c.Request.Context(), profileID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}

// ToggleRenewal flips auto-renew on a membership purchase.
// POST /memberships/:id/toggle-renewal
func (h *Handler) ToggleRenewal(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}
	purchaseID, ok := api.ParamID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.ToggleAutoRenew(c.Request.Context(), id, purchaseID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ExpireCredits runs the expiry sweep. Mounted behind the cron secret.
// GET /cron/expire-credits
func (h *Handler) ExpireCredits(c *gin.Context) {
	result, err := h.service.ExpireCredits(c.Request.Context())
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProcessRenewals runs the renewal sweep. It always answers 200 once the
// candidates were loaded; per-purchase failures are in the body.
// POST /memberships/process-renewals, GET /cron/process-renewals
func (h *Handler) ProcessRenewals(c *gin.Context) {
	summary, err := h.service.ProcessRenewals(c.Request.Context())
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GET /packages
func (h *Handler) ListPackages(c *gin.Context) {
	packages, err := h.service.ListPackages(c.Request.Context(), includeInactive(c))
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, packages)
}

// POST /packages
func (h *Handler) CreatePackage(c *gin.Context) {
	var req CreatePackageRequest
	if !api.BindJSON(c, &req) {
		return
	}

	p, err := h.service.CreatePackage(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GET /memberships
func (h *Handler) ListMemberships(c *gin.Context) {
	memberships, err := h.service.ListMemberships(c.Request.Context(), includeInactive(c))
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, memberships)
}

// POST /memberships
func (h *Handler) CreateMembership(c *gin.Context) {
	var req CreateMembershipRequest
	if !api.BindJSON(c, &req) {
		return
	}

	m, err := h.service.CreateMembership(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// POST /purchases/grant
func (h *Handler) Grant(c *gin.Context) {
	var req GrantRequest
	if !api.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Grant(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// POST /purchases/checkout
func (h *Handler) Checkout(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if !api.BindJSON(c, &req) {
		return
	}

	profileID, err := auth.TargetProfile(id, req.StudentProfileID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	result, err := h.service.Checkout(c.Request.Context(), id, profileID, req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GatewayNotification receives payment status callbacks. It is public; the
// payload signature is what authenticates it.
// POST /payments/notifications
func (h *Handler) GatewayNotification(c *gin.Context) {
	var n GatewayNotification
	if !api.BindJSON(c, &n) {
		return
	}

	result, err := h.service.HandleGatewayNotification(c.Request.Context(), n)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func includeInactive(c *gin.Context) bool {
	if c.Query("all") != "true" {
		return false
	}
	id, ok := auth.GetIdentity(c)
	return ok && id.Role == auth.RoleAdmin
}
