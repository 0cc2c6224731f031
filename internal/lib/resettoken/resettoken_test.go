package resettoken

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"credentials_service/internal/lib/password"
	"credentials_service/internal/models"
	"credentials_service/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func setup(t *testing.T) (*Manager, *memory.Storage, *password.Hasher, *clock, models.User) {
	t.Helper()

	store := memory.New()
	hasher := password.New(bcrypt.MinCost)
	clk := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}

	oldHash, err := hasher.Hash("Aa1!aaaa")
	require.NoError(t, err)

	u, err := store.CreateUser(context.Background(), models.User{Name: "Alice", Email: "a@x.com", PassHash: oldHash})
	require.NoError(t, err)

	m := New(store, hasher, time.Hour).WithClock(clk.Now)

	return m, store, hasher, clk, u
}

func TestIssue_StoresDigestOnly(t *testing.T) {
	m, store, _, clk, u := setup(t)
	ctx := context.Background()

	token, err := m.Issue(ctx, u)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	stored, err := store.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, Digest(token), stored.ResetTokenHash)
	assert.NotEqual(t, token, stored.ResetTokenHash)
	require.NotNil(t, stored.ResetTokenExpiry)
	assert.True(t, stored.ResetTokenExpiry.Equal(clk.t.Add(time.Hour)))
}

func TestConsume_SingleUse(t *testing.T) {
	m, store, hasher, _, u := setup(t)
	ctx := context.Background()

	token, err := m.Issue(ctx, u)
	require.NoError(t, err)

	got, err := m.Consume(ctx, token, "Bb2@bbbb")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	stored, err := store.UserWithPassword(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, hasher.Verify("Bb2@bbbb", stored.PassHash))
	assert.False(t, hasher.Verify("Aa1!aaaa", stored.PassHash))
	assert.Empty(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiry)

	_, err = m.Consume(ctx, token, "Cc3#cccc")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestConsume_Expired(t *testing.T) {
	m, _, _, clk, u := setup(t)
	ctx := context.Background()

	token, err := m.Issue(ctx, u)
	require.NoError(t, err)

	clk.t = clk.t.Add(time.Hour + time.Second)

	_, err = m.Consume(ctx, token, "Bb2@bbbb")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestIssue_ReplacesPreviousToken(t *testing.T) {
	m, _, _, _, u := setup(t)
	ctx := context.Background()

	first, err := m.Issue(ctx, u)
	require.NoError(t, err)
	second, err := m.Issue(ctx, u)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = m.Consume(ctx, first, "Bb2@bbbb")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)

	_, err = m.Consume(ctx, second, "Bb2@bbbb")
	assert.NoError(t, err)
}

func TestConsume_UnknownAndEmpty(t *testing.T) {
	m, _, _, _, _ := setup(t)
	ctx := context.Background()

	_, err := m.Consume(ctx, "", "Bb2@bbbb")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)

	_, err = m.Consume(ctx, strings.Repeat("0", 64), "Bb2@bbbb")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestIssue_RandomFailure(t *testing.T) {
	m, _, _, _, u := setup(t)
	m.random = failingReader{}

	_, err := m.Issue(context.Background(), u)
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Digest("hello"),
	)
}
