package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"credentials_service/internal/auth"
	sl "credentials_service/internal/lib/logger"
	"credentials_service/internal/models"
	oauthgoogle "credentials_service/internal/oauth/google"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	profile oauthgoogle.Profile
	err     error
}

func (p fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (p fakeProvider) Profile(context.Context, string) (oauthgoogle.Profile, error) {
	return p.profile, p.err
}

type fakeSignIn struct {
	gotID, gotEmail string
	err             error
}

func (s *fakeSignIn) FindOrCreateOAuthUser(_ context.Context, googleID, email, _ string) (auth.Session, error) {
	s.gotID, s.gotEmail = googleID, email
	if s.err != nil {
		return auth.Session{}, s.err
	}

	return auth.Session{User: models.PublicUser{ID: "u-1", Email: email}, Token: "tok.en"}, nil
}

func TestStart_SetsStateCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	Start(sl.NewDiscardLogger(), fakeProvider{}, false)(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	assert.Equal(t, http.StatusFound, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, stateCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, cookies[0].Value, loc.Query().Get("state"))
}

func callback(state, cookie string, provider Provider, signIn OAuthSignIn) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=c&state="+state, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: cookie})
	}

	rec := httptest.NewRecorder()
	Callback(sl.NewDiscardLogger(), provider, signIn, "http://app.local/")(rec, req)

	return rec
}

func TestCallback_Success(t *testing.T) {
	signIn := &fakeSignIn{}
	provider := fakeProvider{profile: oauthgoogle.Profile{ID: "g-1", Email: "g@x.com", EmailVerified: true, Name: "Gina"}}

	rec := callback("s1", "s1", provider, signIn)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://app.local/auth/callback?token=tok.en", rec.Header().Get("Location"))
	assert.Equal(t, "g-1", signIn.gotID)
	assert.Equal(t, "g@x.com", signIn.gotEmail)
}

func TestCallback_Failures(t *testing.T) {
	const failure = "http://app.local/login?error=google_auth_failed"

	good := fakeProvider{profile: oauthgoogle.Profile{ID: "g-1", Email: "g@x.com", EmailVerified: true}}
	unverified := fakeProvider{profile: oauthgoogle.Profile{ID: "g-2", Email: "victim@x.com"}}

	tests := []struct {
		name     string
		state    string
		cookie   string
		provider Provider
		signIn   *fakeSignIn
	}{
		{name: "missing cookie", state: "s1", provider: good, signIn: &fakeSignIn{}},
		{name: "state mismatch", state: "s1", cookie: "s2", provider: good, signIn: &fakeSignIn{}},
		{name: "exchange fails", state: "s1", cookie: "s1", provider: fakeProvider{err: errors.New("bad code")}, signIn: &fakeSignIn{}},
		{name: "unverified email", state: "s1", cookie: "s1", provider: unverified, signIn: &fakeSignIn{}},
		{name: "sign in fails", state: "s1", cookie: "s1", provider: good, signIn: &fakeSignIn{err: errors.New("db down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := callback(tt.state, tt.cookie, tt.provider, tt.signIn)

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, failure, rec.Header().Get("Location"))
			if tt.signIn.err == nil {
				assert.Empty(t, tt.signIn.gotEmail)
			}
		})
	}
}

func TestNotConfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	NotConfigured()(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, rec.Body.String(), "Google OAuth is not configured")
}
