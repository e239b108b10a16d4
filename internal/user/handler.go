package user

import (
	"errors"
	"net/http"
	"strings"

	"swiftfit/internal/api"
	"swiftfit/internal/auth"
	"swiftfit/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
	appURL  string
}

// NewHandler wires the auth endpoints. appURL is where verification
// redirects land.
func NewHandler(service Service, appURL string) *Handler {
	return &Handler{service: service, appURL: strings.TrimRight(appURL, "/")}
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !api.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !api.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /auth/refresh
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if !api.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /me
func (h *Handler) GetMe(c *gin.Context) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return
	}

	u, err := h.service.GetByID(c.Request.Context(), id.UserID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// POST /api/auth/send-verification
func (h *Handler) SendVerification(c *gin.Context) {
	var req SendVerificationRequest
	if !api.BindJSON(c, &req) {
		return
	}

	if err := h.service.SendVerification(c.Request.Context(), req.Email); err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "verification email sent"})
}

// VerifyEmail is the link target of verification emails. It always answers
// with a redirect into the web app.
// GET /api/auth/verify-email-custom
func (h *Handler) VerifyEmail(c *gin.Context) {
	err := h.service.VerifyEmail(c.Request.Context(), c.Query("token"))
	if err == nil {
		c.Redirect(http.StatusFound, h.appURL+"/verify-email/success")
		return
	}

	reason := "server"
	switch {
	case errors.Is(err, ErrMissingToken):
		reason = "missing-token"
	case errors.Is(err, auth.ErrTokenExpired):
		reason = "expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, ErrUserNotFound):
		reason = "invalid-token"
	default:
		logger.Error("email verification failed", logger.FieldError, err)
	}
	c.Redirect(http.StatusFound, h.appURL+"/verify-email/error?error="+reason)
}
