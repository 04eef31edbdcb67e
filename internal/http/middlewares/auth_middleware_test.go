package middlewares_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/orghub/internal/auth"
	"github.com/geocoder89/orghub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticVerifier struct {
	claims *auth.Claims
	err    error
}

func (v *staticVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func protectedRouter(verifier middlewares.TokenVerifier) *gin.Engine {
	r := gin.New()

	mw := middlewares.NewAuthMiddleware(verifier)

	r.GET("/protected", mw.RequireAuth(), func(c *gin.Context) {
		id, _ := middlewares.UserIDFromContext(c)
		email, _ := middlewares.EmailFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "email": email})
	})

	return r
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		verifier   middlewares.TokenVerifier
		wantStatus int
	}{
		{
			name:       "missing header",
			header:     "",
			verifier:   &staticVerifier{claims: &auth.Claims{UserID: 1}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer scheme",
			header:     "Basic abc",
			verifier:   &staticVerifier{claims: &auth.Claims{UserID: 1}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "empty bearer token",
			header:     "Bearer ",
			verifier:   &staticVerifier{claims: &auth.Claims{UserID: 1}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "verifier rejects",
			header:     "Bearer bad-token",
			verifier:   &staticVerifier{err: errors.New("expired")},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid token",
			header:     "Bearer good-token",
			verifier:   &staticVerifier{claims: &auth.Claims{UserID: 7, Email: "a@example.com"}},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := protectedRouter(tc.verifier)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			if tc.wantStatus == http.StatusOK {
				if body["id"] != float64(7) || body["email"] != "a@example.com" {
					t.Fatalf("identity not stashed on context: %v", body)
				}
				return
			}

			if body["statusCode"] != float64(http.StatusUnauthorized) {
				t.Fatalf("expected statusCode 401 in body, got %v", body)
			}
		})
	}
}

func TestRequireAuth_RealManagerRoundTrip(t *testing.T) {
	m := auth.NewManager("test-secret", 5*time.Minute)

	token, err := m.GenerateAccessToken(42, "john@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	r := protectedRouter(m)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	expired := auth.NewManager("test-secret", -time.Minute)

	staleToken, err := expired.GenerateAccessToken(42, "john@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+staleToken)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expired token must be rejected, got %d", w.Code)
	}
}
