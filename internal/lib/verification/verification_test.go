package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "verification-secret-verification-secret"

func TestGenerateAndParse(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	tok, err := GenerateVerificationToken("user-7", 24*time.Hour, secret, now)
	require.NoError(t, err)

	uid, err := ParseVerificationToken(tok, secret, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "user-7", uid)
}

func TestParse_Expired(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	tok, err := GenerateVerificationToken("user-7", time.Hour, secret, now)
	require.NoError(t, err)

	_, err = ParseVerificationToken(tok, secret, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_WrongSecret(t *testing.T) {
	now := time.Now()

	tok, err := GenerateVerificationToken("user-7", time.Hour, secret, now)
	require.NoError(t, err)

	_, err = ParseVerificationToken(tok, "other-secret", now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLink(t *testing.T) {
	assert.Equal(t,
		"http://api.example.com/auth/verify?token=a.b%2Bc",
		Link("http://api.example.com/", "a.b+c"),
	)
}
