// Package jwt issues and verifies stateless session tokens. Verification
// never consults a store, so a token stays valid until it expires.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired      = errors.New("token expired")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenVerification = errors.New("token verification failed")
	ErrTokenGeneration   = errors.New("failed to generate token")
)

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock swaps the time source used for issuing and validating tokens.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// NewToken signs the identity claims with HS256.
func (m *Manager) NewToken(userID, email string) (string, error) {
	const op = "jwt.NewToken"

	now := m.now()

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrTokenGeneration, err)
	}

	return token, nil
}

// Parse verifies signature and expiry and returns the decoded claims.
func (m *Manager) Parse(tokenStr string) (Claims, error) {
	var claims Claims

	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, classify(err)
	}

	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if claims.UserID == "" || claims.Email == "" {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

// classify folds library errors into the package's error set. Expiry is
// checked first because the library reports it as an invalid-claims error too.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrInvalidToken
	default:
		return fmt.Errorf("%w: %w", ErrTokenVerification, err)
	}
}
