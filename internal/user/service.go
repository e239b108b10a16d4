package user

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"swiftfit/internal/api"
	"swiftfit/internal/auth"
	"swiftfit/internal/logger"
)

var (
	ErrEmailExists          = api.Conflict("EMAIL_EXISTS", "email already registered")
	ErrInvalidCredentials   = api.Unauthorized("INVALID_CREDENTIALS", "invalid email or password")
	ErrInvalidRefreshToken  = api.Unauthorized("INVALID_REFRESH_TOKEN", "invalid or expired refresh token")
	ErrUserNotFound         = api.NotFound("USER_NOT_FOUND", "user not found")
	ErrAlreadyVerified      = api.Conflict("EMAIL_ALREADY_VERIFIED", "email is already verified")
	ErrVerificationNotSent  = api.Upstream("VERIFICATION_EMAIL_FAILED", "could not send verification email")
	ErrMissingToken         = api.Validation("MISSING_TOKEN", "token is required")
	ErrVerificationDisabled = api.Upstream("VERIFICATION_DISABLED", "email verification is not configured")
)

const verifyPath = "/api/auth/verify-email-custom"

type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, name, link string) error
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	// VerificationSecret signs email verification tokens.
	VerificationSecret string
	// AppURL is the public base URL verification links point at.
	AppURL string
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	GetByID(ctx context.Context, userID int) (*User, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error)
	SendVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) error
}

type service struct {
	repo     Repository
	notifier Notifier
	cfg      Config
}

func NewService(repo Repository, notifier Notifier, cfg Config) Service {
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.AccessSecret
	}
	return &service{repo: repo, notifier: notifier, cfg: cfg}
}

func identity(u *User) auth.Identity {
	id := auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
	if u.StudentProfileID != nil {
		id.ProfileID = *u.StudentProfileID
	}
	return id
}

func (s *service) issue(u *User) (*AuthResponse, error) {
	access, refresh, err := auth.GenerateTokens(identity(u), s.cfg.AccessSecret, s.cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{AccessToken: access, RefreshToken: refresh, User: u}, nil
}

// Register creates a student account. Staff accounts are not self-service.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &User{Name: strings.TrimSpace(req.Name), Email: email, PasswordHash: hash, Role: auth.RoleStudent}
	if err := s.repo.Create(ctx, u, strings.TrimSpace(req.Phone)); err != nil {
		return nil, fmt.Errorf("register %s: %w", email, err)
	}

	logger.Info("user registered", logger.FieldUserID, u.ID)
	return s.issue(u)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	u, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *service) GetByID(ctx context.Context, userID int) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

// Refresh trades a refresh token for a new access token. The user is
// reloaded so role or profile changes take effect.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	_, claims, err := auth.RefreshAccessToken(refreshToken, s.cfg.RefreshSecret, s.cfg.AccessSecret)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	u, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	access, err := auth.GenerateAccessToken(identity(u), s.cfg.AccessSecret)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{AccessToken: access, User: u}, nil
}

func (s *service) SendVerification(ctx context.Context, email string) error {
	if s.cfg.VerificationSecret == "" || s.notifier == nil {
		return ErrVerificationDisabled
	}

	u, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return ErrAlreadyVerified
	}

	token, err := auth.GenerateVerificationToken(u.Email, s.cfg.VerificationSecret)
	if err != nil {
		return err
	}
	link := strings.TrimRight(s.cfg.AppURL, "/") + verifyPath + "?token=" + url.QueryEscape(token)

	if err := s.notifier.SendVerificationEmail(ctx, u.Email, u.Name, link); err != nil {
		logger.Error("verification email failed", logger.FieldUserID, u.ID, logger.FieldError, err)
		return ErrVerificationNotSent
	}
	logger.Info("verification email sent", logger.FieldUserID, u.ID)
	return nil
}

// VerifyEmail marks the token's address verified. Token problems come back
// as ErrMissingToken, auth.ErrTokenExpired or auth.ErrInvalidToken.
func (s *service) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}
	if s.cfg.VerificationSecret == "" {
		return ErrVerificationDisabled
	}

	email, err := auth.ParseVerificationToken(token, s.cfg.VerificationSecret)
	if err != nil {
		return err
	}
	if err := s.repo.MarkEmailVerified(ctx, email); err != nil {
		return err
	}
	logger.Info("email verified", "email", email)
	return nil
}
