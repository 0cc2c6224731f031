package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewTokenAndParse_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := New(secret, 7*24*time.Hour).WithClock(fixedClock(now))

	tok, err := m.NewToken("user-1", "a@x.com")
	require.NoError(t, err)

	claims, err := m.Parse(tok)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.True(t, claims.IssuedAt.Time.Equal(now))
	assert.True(t, claims.ExpiresAt.Time.Equal(now.Add(7*24*time.Hour)))
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tok, err := New(secret, time.Hour).WithClock(fixedClock(issued)).NewToken("u", "u@x.com")
	require.NoError(t, err)

	_, err = New(secret, time.Hour).WithClock(fixedClock(issued.Add(2 * time.Hour))).Parse(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParse_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := New(secret, time.Hour).NewToken("u", "u@x.com")
	require.NoError(t, err)

	_, err = New("another-secret-another-secret-xx", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	m := New(secret, time.Hour)

	for _, tok := range []string{"", "not.a.jwt", "abc"} {
		_, err := m.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestParse_MissingClaims(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{
		"user_id": "u",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = New(secret, time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_MissingExpiry(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{"user_id": "u", "email": "u@x.com"}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = New(secret, time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{
		"user_id": "u",
		"email":   "u@x.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = New(secret, time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = New(secret, time.Hour).Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClassify_Unexpected(t *testing.T) {
	t.Parallel()

	err := classify(errors.New("boom"))
	assert.ErrorIs(t, err, ErrTokenVerification)
}
