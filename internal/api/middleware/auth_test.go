package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/matiasleandrokruk/toolscope/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/toolscope/internal/api/middleware"
	pkgauth "github.com/matiasleandrokruk/toolscope/pkg/auth"
)

const testSecret = "test-secret-key-32-chars-min!!!"

// pkgauth.GenerateJWT panics without JWT_SECRET.
func TestMain(m *testing.M) {
	os.Setenv(pkgauth.EnvJWTSecret, testSecret) //nolint:errcheck
	os.Exit(m.Run())
}

// nextHandler records that it ran and the request context it saw.
func nextHandler(called *bool, capturedCtx *context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if capturedCtx != nil {
			*capturedCtx = r.Context()
		}
		w.WriteHeader(http.StatusOK)
	})
}

func makeRequest(authorization string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/filter", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	t.Parallel()

	valid, err := pkgauth.GenerateJWT("client-1", "ws-1")
	if err != nil {
		t.Fatalf("GenerateJWT error = %v", err)
	}

	cases := map[string]string{
		"no header":      "",
		"empty bearer":   "Bearer ",
		"wrong scheme":   "Basic dXNlcjpwYXNz",
		"lowercase":      "bearer " + valid,
		"garbage token":  "Bearer not.a.real.jwt",
		"tampered token": "Bearer " + valid[:len(valid)-10] + "TAMPERED!!",
		"expired token":  "Bearer " + buildExpiredToken(t, "client-1", "ws-1"),
	}
	for name, header := range cases {
		header := header
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			called := false
			rr := httptest.NewRecorder()
			middleware.AuthMiddleware(nextHandler(&called, nil)).ServeHTTP(rr, makeRequest(header))

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d; want %d", rr.Code, http.StatusUnauthorized)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q; want application/json", ct)
			}
			if called {
				t.Error("next handler should NOT be called")
			}
		})
	}
}

func TestAuthMiddleware_InjectsClaims(t *testing.T) {
	t.Parallel()

	token, err := pkgauth.GenerateJWT("client-abc", "ws-xyz")
	if err != nil {
		t.Fatalf("GenerateJWT error = %v", err)
	}

	var capturedCtx context.Context
	called := false
	rr := httptest.NewRecorder()
	middleware.AuthMiddleware(nextHandler(&called, &capturedCtx)).ServeHTTP(rr, makeRequest("Bearer "+token))

	if rr.Code != http.StatusOK || !called {
		t.Fatalf("status = %d called = %v; want 200 and next handler called", rr.Code, called)
	}
	if got := ctxkeys.Value(capturedCtx, ctxkeys.ClientID); got != "client-abc" {
		t.Errorf("context ClientID = %q; want client-abc", got)
	}
	if got := ctxkeys.Value(capturedCtx, ctxkeys.WorkspaceID); got != "ws-xyz" {
		t.Errorf("context WorkspaceID = %q; want ws-xyz", got)
	}
}

// buildExpiredToken signs a token with the test secret whose exp is one second ago.
func buildExpiredToken(t *testing.T, clientID, workspaceID string) string {
	t.Helper()

	now := time.Now()
	claims := &pkgauth.Claims{
		ClientID:    clientID,
		WorkspaceID: workspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-1 * time.Second)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			NotBefore: jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	return signed
}
