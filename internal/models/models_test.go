package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageExpiry(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, ""},
		{time.Hour, "1 hour"},
		{24 * time.Hour, "24 hours"},
		{time.Minute, "1 minute"},
		{90 * time.Minute, "90 minutes"},
		{90 * time.Second, "1m30s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Message{ExpiresIn: tt.in}.Expiry(), tt.in.String())
	}
}

func TestPublicProjectionHidesSecrets(t *testing.T) {
	u := User{ID: "u-1", Name: "Alice", Email: "a@x.com", PassHash: []byte("h"), ResetTokenHash: "d", IsEmailVerified: true}

	assert.Equal(t, PublicUser{ID: "u-1", Name: "Alice", Email: "a@x.com", IsEmailVerified: true}, u.Public())
}
