// Package password hashes and verifies stored credentials with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 10

var ErrTooLong = errors.New("password is too long")

type Hasher struct {
	cost  int
	dummy []byte
}

// New returns a hasher with the given bcrypt cost; out of range values fall
// back to DefaultCost.
func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), cost)
	if err != nil {
		panic("password: failed to prepare dummy hash: " + err.Error())
	}

	return &Hasher{cost: cost, dummy: dummy}
}

func (h *Hasher) Hash(plain string) ([]byte, error) {
	const op = "password.Hash"

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrTooLong
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return hash, nil
}

// Verify reports whether plain matches hash. An empty hash is still compared
// against a throwaway hash so callers spend the same time either way.
func (h *Hasher) Verify(plain string, hash []byte) bool {
	if len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
		return false
	}

	return bcrypt.CompareHashAndPassword(hash, []byte(plain)) == nil
}

func (h *Hasher) Cost() int {
	return h.cost
}
