// Package memory is an in-process credential store used for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"credentials_service/internal/models"
	"credentials_service/internal/storage"

	"github.com/google/uuid"
)

type Storage struct {
	mu    sync.RWMutex
	users map[string]models.User
	now   func() time.Time
}

func New() *Storage {
	return &Storage{
		users: make(map[string]models.User),
		now:   time.Now,
	}
}

func (s *Storage) CreateUser(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Email = models.NormalizeEmail(u.Email)

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return models.User{}, storage.ErrUserExists
		}
		if u.GoogleID != "" && existing.GoogleID == u.GoogleID {
			return models.User{}, storage.ErrUserExists
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = clone(u)

	return public(u), nil
}

func (s *Storage) User(ctx context.Context, email string) (models.User, error) {
	u, err := s.UserWithPassword(ctx, email)
	if err != nil {
		return models.User{}, err
	}

	return public(u), nil
}

func (s *Storage) UserWithPassword(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = models.NormalizeEmail(email)

	for _, u := range s.users {
		if u.Email == email {
			return clone(u), nil
		}
	}

	return models.User{}, storage.ErrUserNotFound
}

func (s *Storage) UserByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return public(u), nil
}

func (s *Storage) UserByGoogleID(_ context.Context, googleID string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if googleID == "" {
		return models.User{}, storage.ErrUserNotFound
	}

	for _, u := range s.users {
		if u.GoogleID == googleID {
			return public(u), nil
		}
	}

	return models.User{}, storage.ErrUserNotFound
}

// UserByEmailOrGoogleID prefers a google id match over an email match.
func (s *Storage) UserByEmailOrGoogleID(ctx context.Context, googleID, email string) (models.User, error) {
	u, err := s.UserByGoogleID(ctx, googleID)
	if err == nil {
		return u, nil
	}

	return s.User(ctx, email)
}

func (s *Storage) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	return s.update(id, func(u *models.User) {
		expiry := expiresAt.UTC()
		u.ResetTokenHash = tokenHash
		u.ResetTokenExpiry = &expiry
	})
}

func (s *Storage) ConsumeResetToken(_ context.Context, tokenHash string, passHash []byte, now time.Time) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tokenHash == "" {
		return models.User{}, storage.ErrResetTokenNotFound
	}

	for id, u := range s.users {
		if u.ResetTokenHash != tokenHash || u.ResetTokenExpiry == nil || !u.ResetTokenExpiry.After(now) {
			continue
		}

		u.PassHash = append([]byte(nil), passHash...)
		u.ResetTokenHash = ""
		u.ResetTokenExpiry = nil
		u.UpdatedAt = s.now().UTC()
		s.users[id] = u

		return public(u), nil
	}

	return models.User{}, storage.ErrResetTokenNotFound
}

func (s *Storage) LinkGoogleID(_ context.Context, id, googleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for otherID, u := range s.users {
		if otherID != id && u.GoogleID == googleID {
			return storage.ErrUserExists
		}
	}

	u, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}

	u.GoogleID = googleID
	u.UpdatedAt = s.now().UTC()
	s.users[id] = u

	return nil
}

func (s *Storage) SetEmailVerified(_ context.Context, id string) error {
	return s.update(id, func(u *models.User) {
		u.IsEmailVerified = true
	})
}

func (s *Storage) Ping(context.Context) error {
	return nil
}

func (s *Storage) update(id string, fn func(u *models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}

	fn(&u)
	u.UpdatedAt = s.now().UTC()
	s.users[id] = u

	return nil
}

func clone(u models.User) models.User {
	if u.PassHash != nil {
		u.PassHash = append([]byte(nil), u.PassHash...)
	}
	if u.ResetTokenExpiry != nil {
		expiry := *u.ResetTokenExpiry
		u.ResetTokenExpiry = &expiry
	}

	return u
}

// public drops the password hash, mirroring default reads from the database.
func public(u models.User) models.User {
	u = clone(u)
	u.PassHash = nil

	return u
}
