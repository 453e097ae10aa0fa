package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type fakeAccounts struct {
	loginRes *services.AuthResult
	loginErr error
	gotEmail string
	gotPass  string

	registerRes *services.AuthResult
	registerErr error
	gotProfile  services.RegisterProfile

	logoutErr error
	gotToken  string

	resetErr    error
	completeErr error
	gotCode     string
	gotNewPass  string
}

func (f *fakeAccounts) Login(_ context.Context, email, password string) (*services.AuthResult, error) {
	f.gotEmail, f.gotPass = email, password
	return f.loginRes, f.loginErr
}

func (f *fakeAccounts) Register(_ context.Context, p services.RegisterProfile) (*services.AuthResult, error) {
	f.gotProfile = p
	return f.registerRes, f.registerErr
}

func (f *fakeAccounts) Logout(_ context.Context, token string) error {
	f.gotToken = token
	return f.logoutErr
}

func (f *fakeAccounts) RequestPasswordReset(_ context.Context, email string) error {
	f.gotEmail = email
	return f.resetErr
}

func (f *fakeAccounts) CompletePasswordReset(_ context.Context, code, newPassword string) error {
	f.gotCode, f.gotNewPass = code, newPassword
	return f.completeErr
}

func newTestServer(f *fakeAccounts) *Server {
	return NewServer("127.0.0.1:0", nopLogger{}, f, prometheus.NewRegistry())
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	}
	return rec, out
}

func price(v int) *int { return &v }

func TestLogin(t *testing.T) {
	ok := &services.AuthResult{
		Token: "tok", AccountID: "id-1", DisplayName: "Ana",
		InterestNames: []string{"Jazz"}, PricePreference: price(3),
	}

	tests := []struct {
		name       string
		body       string
		res        *services.AuthResult
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "success", body: `{"email":"a@x.com","password":"p"}`, res: ok, wantStatus: http.StatusOK},
		{name: "not found", body: `{"email":"a@x.com","password":"p"}`, err: common.ErrorNotFound, wantStatus: http.StatusBadRequest, wantMsg: msgUserNotFound},
		{name: "bad password", body: `{"email":"a@x.com","password":"p"}`, err: common.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized, wantMsg: msgWrongPassword},
		{name: "store down", body: `{"email":"a@x.com","password":"p"}`, err: fmt.Errorf("%w: db", common.ErrDependencyUnavailable), wantStatus: http.StatusInternalServerError, wantMsg: msgServerError},
		{name: "malformed body", body: `{"email":`, wantStatus: http.StatusBadRequest, wantMsg: msgInvalidBody},
		{name: "missing password", body: `{"email":"a@x.com"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAccounts{loginRes: tt.res, loginErr: tt.err}
			rec, out := do(t, newTestServer(f), http.MethodPost, "/login", tt.body, nil)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, out["msg"])
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, true, out["success"])
				assert.Equal(t, "tok", out["token"])
				user := out["user"].(map[string]any)
				assert.Equal(t, "id-1", user["id"])
				assert.Equal(t, "Ana", user["nombre"])
				assert.Equal(t, []any{"Jazz"}, user["intereses"])
				assert.Equal(t, float64(3), user["price"])
				assert.Equal(t, "a@x.com", f.gotEmail)
				assert.Equal(t, "p", f.gotPass)
			}
		})
	}
}

func TestLogin_InternalErrorDoesNotLeak(t *testing.T) {
	f := &fakeAccounts{loginErr: errors.New("pq: password=$2a$10$secrethash")}
	rec, _ := do(t, newTestServer(f), http.MethodPost, "/login", `{"email":"a@x.com","password":"p"}`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secrethash")
}

func TestRegister(t *testing.T) {
	ok := &services.AuthResult{Token: "tok", AccountID: "id-9", DisplayName: "Ana"}
	valid := `{"Usuario":{"correo":"A@X.com","password":"p1","nombre":"Ana","edad":30,"preferenciasPrecio":2,
		"intereses":["0b7e7dee-87ac-4b51-9b2e-2f0c1e0a6b11"]}}`

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "success", body: valid, wantStatus: http.StatusOK},
		{name: "conflict", body: valid, err: common.ErrConflict, wantStatus: http.StatusConflict, wantMsg: msgEmailExists},
		{name: "store validation", body: valid, err: &common.ValidationError{Msg: "edad fuera de rango"}, wantStatus: http.StatusBadRequest, wantMsg: "edad fuera de rango"},
		{name: "server", body: valid, err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantMsg: msgServerError},
		{name: "missing Usuario", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "bad email", body: `{"Usuario":{"correo":"nope","password":"p"}}`, wantStatus: http.StatusBadRequest},
		{name: "blank password", body: `{"Usuario":{"correo":"a@x.com","password":"   "}}`, wantStatus: http.StatusBadRequest},
		{name: "bad interest id", body: `{"Usuario":{"correo":"a@x.com","password":"p","intereses":["x"]}}`, wantStatus: http.StatusBadRequest},
		{name: "repeated interest id", body: `{"Usuario":{"correo":"a@x.com","password":"p",
			"intereses":["0b7e7dee-87ac-4b51-9b2e-2f0c1e0a6b11","0b7e7dee-87ac-4b51-9b2e-2f0c1e0a6b11"]}}`,
			wantStatus: http.StatusBadRequest, wantMsg: msgInvalidFields + "Intereses (unique)"},
		{name: "password too long", body: `{"Usuario":{"correo":"a@x.com","password":"` + strings.Repeat("a", 73) + `"}}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAccounts{registerRes: ok, registerErr: tt.err}
			rec, out := do(t, newTestServer(f), http.MethodPost, "/register", tt.body, nil)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, out["msg"])
			}
			if tt.err == nil && tt.wantStatus == http.StatusBadRequest {
				assert.Empty(t, f.gotProfile.Email, "rejected input must not reach the service")
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, true, out["success"])
				assert.Equal(t, []any{}, out["user"].(map[string]any)["intereses"])
				assert.Nil(t, out["user"].(map[string]any)["price"])

				p := f.gotProfile
				assert.Equal(t, "A@X.com", p.Email)
				assert.Equal(t, "p1", p.Password)
				assert.Equal(t, "Ana", p.DisplayName)
				require.NotNil(t, p.Age)
				assert.Equal(t, 30, *p.Age)
				require.NotNil(t, p.PricePreference)
				assert.Equal(t, 2, *p.PricePreference)
				assert.Len(t, p.InterestIDs, 1)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		err        error
		wantToken  string
		wantStatus int
		wantMsg    string
	}{
		{name: "raw token", header: "abc", wantToken: "abc", wantStatus: http.StatusOK, wantMsg: msgLoggedOut},
		{name: "bearer token", header: "Bearer abc", wantToken: "abc", wantStatus: http.StatusOK, wantMsg: msgLoggedOut},
		{name: "no token", header: "", err: common.ErrUnauthenticated, wantStatus: http.StatusUnauthorized, wantMsg: msgNoToken},
		{name: "invalid", header: "abc", wantToken: "abc", err: common.ErrInvalidToken, wantStatus: http.StatusUnauthorized, wantMsg: msgInvalidToken},
		{name: "expired", header: "abc", wantToken: "abc", err: common.ErrTokenExpired, wantStatus: http.StatusUnauthorized, wantMsg: msgTokenExpired},
		{name: "user gone", header: "abc", wantToken: "abc", err: common.ErrorNotFound, wantStatus: http.StatusNotFound, wantMsg: msgLogoutNotFound},
		{name: "server", header: "abc", wantToken: "abc", err: common.ErrDependencyUnavailable, wantStatus: http.StatusInternalServerError, wantMsg: msgLogoutError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAccounts{logoutErr: tt.err}
			headers := map[string]string{}
			if tt.header != "" {
				headers[common.AuthorizationHeaderName] = tt.header
			}
			rec, out := do(t, newTestServer(f), http.MethodGet, "/logout", "", headers)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, out["msg"])
			assert.Equal(t, tt.wantToken, f.gotToken)
		})
	}
}

func TestRequestPasswordReset(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "sent", body: `{"email":"a@x.com"}`, wantStatus: http.StatusOK, wantMsg: msgResetSent},
		{name: "unknown", body: `{"email":"a@x.com"}`, err: common.ErrorNotFound, wantStatus: http.StatusNotFound, wantMsg: msgUserNotFound},
		{name: "server", body: `{"email":"a@x.com"}`, err: errors.New("x"), wantStatus: http.StatusInternalServerError, wantMsg: msgServerError},
		{name: "missing email", body: `{}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAccounts{resetErr: tt.err}
			rec, out := do(t, newTestServer(f), http.MethodPost, "/recuperar-contrasena", tt.body, nil)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, out["msg"])
			}
		})
	}
}

func TestCompletePasswordReset(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "updated", body: `{"token":"abcd1234","newPassword":"n"}`, wantStatus: http.StatusOK, wantMsg: msgPasswordUpdated},
		{name: "invalid", body: `{"token":"abcd1234","newPassword":"n"}`, err: common.ErrInvalidOrExpiredToken, wantStatus: http.StatusBadRequest, wantMsg: msgResetInvalid},
		{name: "same", body: `{"token":"abcd1234","newPassword":"n"}`, err: common.ErrSamePassword, wantStatus: http.StatusBadRequest, wantMsg: msgSamePassword},
		{name: "server", body: `{"token":"abcd1234","newPassword":"n"}`, err: common.ErrDependencyUnavailable, wantStatus: http.StatusInternalServerError, wantMsg: msgServerError},
		{name: "missing password", body: `{"token":"abcd1234"}`, wantStatus: http.StatusBadRequest},
		{name: "password too long", body: `{"token":"abcd1234","newPassword":"` + strings.Repeat("a", 73) + `"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAccounts{completeErr: tt.err}
			rec, out := do(t, newTestServer(f), http.MethodPost, "/cambiar-contrasena", tt.body, nil)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, out["msg"])
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "abcd1234", f.gotCode)
				assert.Equal(t, "n", f.gotNewPass)
			}
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "auth_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	s := NewServer("127.0.0.1:0", nopLogger{}, &fakeAccounts{}, reg)

	rec, out := do(t, s, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	s.Handler().ServeHTTP(mrec, req)
	require.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "auth_test_total 1")
}

func TestMetricsNotMountedWithoutGatherer(t *testing.T) {
	s := NewServer("127.0.0.1:0", nopLogger{}, &fakeAccounts{}, nil)
	rec, _ := do(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(&fakeAccounts{})

	rec, _ := do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec, _ = do(t, s, http.MethodGet, "/healthz", "", map[string]string{requestIDHeader: "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestRecovery(t *testing.T) {
	s := newTestServer(&fakeAccounts{})
	s.engine.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	rec, out := do(t, s, http.MethodGet, "/panic", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgServerError, out["msg"])
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("abc"))
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "", bearerToken(""))
	assert.Equal(t, "Bearer", bearerToken("Bearer"))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := newTestServer(&fakeAccounts{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	s := NewServer("127.0.0.1:99999", nopLogger{}, &fakeAccounts{}, nil)
	require.Error(t, s.Run(context.Background()))
}
