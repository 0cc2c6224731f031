package resetPassword

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"credentials_service/internal/auth"
	"credentials_service/internal/lib/api/response"
	sl "credentials_service/internal/lib/logger"
	"credentials_service/internal/lib/validation"
	"credentials_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResetter struct {
	token string
	err   error
}

func (f *fakeResetter) ResetPassword(_ context.Context, token, _ string) (auth.Session, error) {
	f.token = token
	if f.err != nil {
		return auth.Session{}, f.err
	}

	return auth.Session{User: models.PublicUser{ID: "u-1"}, Token: "tok.en"}, nil
}

func serve(t *testing.T, resetter PasswordResetter, body string, debug bool) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/reset-password", strings.NewReader(body))
	req = req.WithContext(response.WithDebug(req.Context(), debug))
	New(sl.NewDiscardLogger(), validation.New(), resetter)(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return rec, out
}

func TestResetPassword_OK(t *testing.T) {
	resetter := &fakeResetter{}

	rec, body := serve(t, resetter, `{"token":"abc","password":"Bb2@bbbb"}`, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", resetter.token)
	assert.Equal(t, "Password reset successful", body["message"])
	assert.Equal(t, "tok.en", body["token"])
}

func TestResetPassword_InvalidToken(t *testing.T) {
	rec, body := serve(t, &fakeResetter{err: auth.ErrInvalidOrExpiredToken}, `{"token":"abc","password":"Bb2@bbbb"}`, false)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, auth.MsgInvalidOrExpiredToken, body["error"])
	assert.Equal(t, "INVALID_RESET_TOKEN", body["code"])
}

func TestResetPassword_PolicyCheckedBeforeToken(t *testing.T) {
	resetter := &fakeResetter{}

	rec, body := serve(t, resetter, `{"token":"abc","password":"short"}`, false)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Empty(t, resetter.token)
}

func TestResetPassword_InternalError(t *testing.T) {
	cause := errors.New("db down")

	_, body := serve(t, &fakeResetter{err: cause}, `{"token":"abc","password":"Bb2@bbbb"}`, false)
	assert.Equal(t, "Internal server error", body["error"])

	rec, body := serve(t, &fakeResetter{err: cause}, `{"token":"abc","password":"Bb2@bbbb"}`, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "db down", body["error"])
}
