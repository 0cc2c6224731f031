package verification

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const purposeEmailVerification = "email_verification"

var ErrInvalidToken = errors.New("invalid verification token")

type claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// GenerateVerificationToken signs a purpose-scoped token whose subject is the user id.
func GenerateVerificationToken(userID string, tokenTTL time.Duration, secret string, now time.Time) (string, error) {
	const op = "verification.GenerateVerificationToken"

	c := claims{
		Purpose: purposeEmailVerification,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// ParseVerificationToken returns the user id carried by a valid, unexpired
// verification token.
func ParseVerificationToken(tokenStr, secret string, now time.Time) (string, error) {
	const op = "verification.ParseVerificationToken"

	var c claims

	parsedToken, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method", op)
		}
		return []byte(secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	if !parsedToken.Valid {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if c.Purpose != purposeEmailVerification {
		return "", fmt.Errorf("%s: %w: wrong purpose", op, ErrInvalidToken)
	}

	if c.Subject == "" {
		return "", fmt.Errorf("%s: %w: missing sub claim", op, ErrInvalidToken)
	}

	return c.Subject, nil
}

// Link builds the URL mailed to the user.
func Link(baseURL, token string) string {
	return fmt.Sprintf("%s/auth/verify?token=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(token))
}
