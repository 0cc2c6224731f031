package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	resp "credentials_service/internal/lib/api/response"
	"credentials_service/internal/lib/jwt"
	sl "credentials_service/internal/lib/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "session-secret-session-secret-session"

type failingVerifier struct{ err error }

func (f failingVerifier) Parse(string) (jwt.Claims, error) { return jwt.Claims{}, f.err }

func protected(verifier TokenVerifier) http.Handler {
	return New(sl.NewDiscardLogger(), verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(claims.UserID + "|" + claims.Email))
	}))
}

func call(t *testing.T, h http.Handler, authorization string) (*httptest.ResponseRecorder, resp.Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body resp.Response
	if rec.Code == http.StatusUnauthorized {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}

	return rec, body
}

func TestGate_ValidToken(t *testing.T) {
	m := jwt.New(secret, time.Hour)
	token, err := m.NewToken("u-1", "a@x.com")
	require.NoError(t, err)

	rec, _ := call(t, protected(m), "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1|a@x.com", rec.Body.String())
}

func TestGate_Rejections(t *testing.T) {
	m := jwt.New(secret, time.Hour)

	past := time.Now().Add(-2 * time.Hour)
	expired, err := jwt.New(secret, time.Hour).WithClock(func() time.Time { return past }).NewToken("u-1", "a@x.com")
	require.NoError(t, err)

	foreign, err := jwt.New("another-secret-another-secret-another", time.Hour).NewToken("u-1", "a@x.com")
	require.NoError(t, err)

	tests := []struct {
		name          string
		authorization string
		verifier      TokenVerifier
		code          string
	}{
		{name: "missing header", authorization: "", verifier: m, code: CodeNoToken},
		{name: "wrong scheme", authorization: "Basic abc", verifier: m, code: CodeNoToken},
		{name: "empty token", authorization: "Bearer    ", verifier: m, code: CodeInvalidTokenFormat},
		{name: "expired", authorization: "Bearer " + expired, verifier: m, code: CodeTokenExpired},
		{name: "foreign secret", authorization: "Bearer " + foreign, verifier: m, code: CodeInvalidToken},
		{name: "garbage", authorization: "Bearer not.a.jwt", verifier: m, code: CodeInvalidToken},
		{
			name:          "unexpected failure",
			authorization: "Bearer x",
			verifier:      failingVerifier{err: errors.New("boom")},
			code:          CodeTokenVerificationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := call(t, protected(tt.verifier), tt.authorization)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, resp.StatusError, body.Status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}
