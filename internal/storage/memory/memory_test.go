package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"credentials_service/internal/models"
	"credentials_service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser_NormalizesAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.CreateUser(ctx, models.User{Name: "Alice", Email: "  Alice@Example.COM ", PassHash: []byte("hash")})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Nil(t, u.PassHash)

	_, err = s.CreateUser(ctx, models.User{Name: "Other", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, storage.ErrUserExists)

	_, err = s.CreateUser(ctx, models.User{Name: "G", Email: "g@example.com", GoogleID: "g-1"})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, models.User{Name: "G2", Email: "g2@example.com", GoogleID: "g-1"})
	assert.ErrorIs(t, err, storage.ErrUserExists)
}

func TestReads_PasswordIsOptIn(t *testing.T) {
	ctx := context.Background()
	s := New()

	created, err := s.CreateUser(ctx, models.User{Name: "Bob", Email: "bob@example.com", PassHash: []byte("hash")})
	require.NoError(t, err)

	u, err := s.User(ctx, "BOB@example.com")
	require.NoError(t, err)
	assert.Nil(t, u.PassHash)

	u, err = s.UserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, u.PassHash)

	u, err = s.UserWithPassword(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, []byte("hash"), u.PassHash)

	_, err = s.User(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = s.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestConsumeResetToken(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	u, err := s.CreateUser(ctx, models.User{Name: "Carol", Email: "carol@example.com", PassHash: []byte("old")})
	require.NoError(t, err)

	require.NoError(t, s.SetResetToken(ctx, u.ID, "digest-1", now.Add(time.Hour)))
	// a newer token replaces the old one
	require.NoError(t, s.SetResetToken(ctx, u.ID, "digest-2", now.Add(time.Hour)))

	_, err = s.ConsumeResetToken(ctx, "digest-1", []byte("new"), now)
	assert.ErrorIs(t, err, storage.ErrResetTokenNotFound)

	got, err := s.ConsumeResetToken(ctx, "digest-2", []byte("new"), now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	stored, err := s.UserWithPassword(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), stored.PassHash)
	assert.Empty(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiry)

	_, err = s.ConsumeResetToken(ctx, "digest-2", []byte("again"), now)
	assert.ErrorIs(t, err, storage.ErrResetTokenNotFound)
}

func TestConsumeResetToken_Expired(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	u, err := s.CreateUser(ctx, models.User{Name: "Dan", Email: "dan@example.com"})
	require.NoError(t, err)
	require.NoError(t, s.SetResetToken(ctx, u.ID, "digest", now))

	_, err = s.ConsumeResetToken(ctx, "digest", []byte("new"), now)
	assert.ErrorIs(t, err, storage.ErrResetTokenNotFound)
}

func TestConsumeResetToken_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	u, err := s.CreateUser(ctx, models.User{Name: "Eve", Email: "eve@example.com"})
	require.NoError(t, err)
	require.NoError(t, s.SetResetToken(ctx, u.ID, "digest", now.Add(time.Hour)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeResetToken(ctx, "digest", []byte("p"), now); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestLinkGoogleID(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.CreateUser(ctx, models.User{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	b, err := s.CreateUser(ctx, models.User{Name: "B", Email: "b@example.com", GoogleID: "g-b"})
	require.NoError(t, err)

	require.NoError(t, s.LinkGoogleID(ctx, a.ID, "g-a"))

	got, err := s.UserByEmailOrGoogleID(ctx, "g-a", "ignored@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = s.UserByEmailOrGoogleID(ctx, "unknown", "B@example.com")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	assert.ErrorIs(t, s.LinkGoogleID(ctx, a.ID, "g-b"), storage.ErrUserExists)
	assert.ErrorIs(t, s.LinkGoogleID(ctx, "missing", "g-x"), storage.ErrUserNotFound)
}

func TestSetEmailVerified(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.CreateUser(ctx, models.User{Name: "V", Email: "v@example.com"})
	require.NoError(t, err)
	assert.False(t, u.IsEmailVerified)

	require.NoError(t, s.SetEmailVerified(ctx, u.ID))

	got, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEmailVerified)

	assert.ErrorIs(t, s.SetEmailVerified(ctx, "missing"), storage.ErrUserNotFound)
}
