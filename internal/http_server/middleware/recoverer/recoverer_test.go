package recoverer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	resp "credentials_service/internal/lib/api/response"
	sl "credentials_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(debugErrors bool, h http.HandlerFunc) http.Handler {
	return middleware.RequestID(RequestID(debugErrors)(New(sl.NewDiscardLogger())(h)))
}

func TestRequestID_EchoesInbound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")

	rec := httptest.NewRecorder()
	chain(false, func(w http.ResponseWriter, _ *http.Request) {}).ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(middleware.RequestIDHeader))
}

func TestRequestID_Generated(t *testing.T) {
	rec := httptest.NewRecorder()
	chain(false, func(w http.ResponseWriter, _ *http.Request) {}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRecoverer(t *testing.T) {
	boom := func(http.ResponseWriter, *http.Request) { panic("kaboom") }

	tests := []struct {
		name      string
		debug     bool
		wantError string
		wantStack bool
	}{
		{name: "prod hides details", debug: false, wantError: "Internal server error"},
		{name: "dev shows details", debug: true, wantError: "kaboom", wantStack: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(middleware.RequestIDHeader, "req-9")

			rec := httptest.NewRecorder()
			chain(tt.debug, boom).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)

			var body resp.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, "req-9", body.RequestID)
			assert.Equal(t, tt.wantStack, body.Stack != "")
		})
	}
}
