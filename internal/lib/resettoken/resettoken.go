// Package resettoken issues single-use password reset secrets. Only the
// SHA-256 digest of a secret is ever persisted.
package resettoken

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"credentials_service/internal/models"
	"credentials_service/internal/storage"
)

const (
	DefaultTTL = time.Hour
	secretSize = 32
)

var ErrInvalidOrExpired = errors.New("invalid or expired reset token")

type Store interface {
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash string, passHash []byte, now time.Time) (models.User, error)
}

type Hasher interface {
	Hash(plain string) ([]byte, error)
}

type Manager struct {
	store  Store
	hasher Hasher
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

func New(store Store, hasher Hasher, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Manager{
		store:  store,
		hasher: hasher,
		ttl:    ttl,
		now:    time.Now,
		random: rand.Reader,
	}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue stores a fresh digest on the user, replacing any earlier one, and
// returns the plaintext secret. The caller is the only holder of it.
func (m *Manager) Issue(ctx context.Context, user models.User) (string, error) {
	const op = "resettoken.Issue"

	buf := make([]byte, secretSize)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token := hex.EncodeToString(buf)

	if err := m.store.SetResetToken(ctx, user.ID, Digest(token), m.now().Add(m.ttl)); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// Consume sets newPassword on the user holding a live token and clears the
// token. Unknown and expired tokens fail the same way.
func (m *Manager) Consume(ctx context.Context, token, newPassword string) (models.User, error) {
	const op = "resettoken.Consume"

	if token == "" {
		return models.User{}, ErrInvalidOrExpired
	}

	passHash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := m.store.ConsumeResetToken(ctx, Digest(token), passHash, m.now())
	if err != nil {
		if errors.Is(err, storage.ErrResetTokenNotFound) {
			return models.User{}, ErrInvalidOrExpired
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
