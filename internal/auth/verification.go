package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	VerificationTokenTTL = 24 * time.Hour

	verificationPurpose = "email_verification"
)

type verificationClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

var nowFunc = time.Now

// GenerateVerificationToken signs a 24h email-verification token for email.
func GenerateVerificationToken(email, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptyJWTSecret
	}

	now := nowFunc()
	claims := &verificationClaims{
		Email:   email,
		Purpose: verificationPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(VerificationTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseVerificationToken returns the email a verification token was issued for.
// Expired tokens yield ErrTokenExpired, anything else unusable ErrInvalidToken.
func ParseVerificationToken(tokenString, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptyJWTSecret
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&verificationClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(jwtIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*verificationClaims)
	if !ok || !token.Valid || claims.Purpose != verificationPurpose || claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}
