package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/orghub/internal/auth"
	"github.com/geocoder89/orghub/internal/domain/organisation"
	"github.com/geocoder89/orghub/internal/domain/user"
	"github.com/geocoder89/orghub/internal/http/handlers"
	"github.com/geocoder89/orghub/internal/repo/postgres"
	"github.com/geocoder89/orghub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// fake tx; only Commit/Rollback matter to the handlers

type fakeTx struct {
	pgx.Tx
	commits   int
	rollbacks int
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.commits++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rollbacks++
	return nil
}

// fake implementations of the handlers.UserStore interface

type fakeUserStore struct {
	tx           *fakeTx
	createFn     func(ctx context.Context, tx pgx.Tx, u user.User) (user.User, error)
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	touched      []int64
}

func (f *fakeUserStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	if f.tx == nil {
		f.tx = &fakeTx{}
	}
	return f.tx, nil
}

func (f *fakeUserStore) CreateTx(ctx context.Context, tx pgx.Tx, u user.User) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, tx, u)
	}

	u.ID = 1
	return u, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}

	return user.User{}, postgres.ErrUserNotFound
}

func (f *fakeUserStore) TouchLastLogin(ctx context.Context, id int64) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeOrgCreator struct {
	created []organisation.Organisation
	members []int64
	fail    error
}

func (f *fakeOrgCreator) CreateTx(ctx context.Context, tx pgx.Tx, org organisation.Organisation, memberID int64) (organisation.Organisation, error) {
	if f.fail != nil {
		return organisation.Organisation{}, f.fail
	}

	org.ID = int64(len(f.created) + 1)
	f.created = append(f.created, org)
	f.members = append(f.members, memberID)
	return org, nil
}

func newAuthRouter(users handlers.UserStore, orgs handlers.OrganisationCreator, jwt *auth.Manager) *gin.Engine {
	r := gin.New()

	h := handlers.NewAuthHandler(users, orgs, jwt)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v body=%s", err, w.Body.String())
	}

	return body
}

func TestRegister_Success(t *testing.T) {
	users := &fakeUserStore{}
	orgs := &fakeOrgCreator{}
	jwt := auth.NewManager("test-secret", 5*time.Minute)

	r := newAuthRouter(users, orgs, jwt)

	w := postJSON(t, r, "/auth/register",
		`{"first_name":"John","last_name":"Doe","email":"john@example.com","password":"password123","phone":"1234567890"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	body := decodeEnvelope(t, w)

	if body["status"] != "success" {
		t.Fatalf("unexpected status: %v", body["status"])
	}
	if body["message"] != "Registration successful" {
		t.Fatalf("unexpected message: %v", body["message"])
	}

	data, _ := body["data"].(map[string]any)
	if data == nil {
		t.Fatalf("missing data object: %s", w.Body.String())
	}

	token, _ := data["accessToken"].(string)
	if token == "" {
		t.Fatalf("missing accessToken")
	}

	claims, err := jwt.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.UserID != 1 || claims.Email != "john@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	u, _ := data["user"].(map[string]any)
	if u["email"] != "john@example.com" || u["first_name"] != "John" {
		t.Fatalf("unexpected user payload: %v", u)
	}
	if _, ok := u["password"]; ok {
		t.Fatalf("password must never be serialized")
	}

	// default organisation created for the new user, user as sole member
	if len(orgs.created) != 1 {
		t.Fatalf("expected exactly one organisation, got %d", len(orgs.created))
	}
	if orgs.created[0].Name != "John's Organisation" {
		t.Fatalf("unexpected org name: %q", orgs.created[0].Name)
	}
	if len(orgs.members) != 1 || orgs.members[0] != 1 {
		t.Fatalf("creator must be the sole member: %v", orgs.members)
	}

	if users.tx == nil || users.tx.commits != 1 {
		t.Fatalf("registration must commit exactly once")
	}
}

func TestRegister_ValidationFailures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name:      "missing first name",
			body:      `{"first_name":"","last_name":"Doe","email":"john@example.com","password":"password123"}`,
			wantField: "first_name",
		},
		{
			name:      "missing last name",
			body:      `{"first_name":"John","email":"john@example.com","password":"password123"}`,
			wantField: "last_name",
		},
		{
			name:      "missing password",
			body:      `{"first_name":"John","last_name":"Doe","email":"john@example.com"}`,
			wantField: "password",
		},
		{
			name:      "invalid email",
			body:      `{"first_name":"John","last_name":"Doe","email":"not-an-email","password":"password123"}`,
			wantField: "email",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &fakeUserStore{}
			orgs := &fakeOrgCreator{}
			r := newAuthRouter(users, orgs, auth.NewManager("test-secret", 5*time.Minute))

			w := postJSON(t, r, "/auth/register", tc.body)

			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("got status %d, want 422, body=%s", w.Code, w.Body.String())
			}

			body := decodeEnvelope(t, w)

			if body["status"] != "Bad request" {
				t.Fatalf("unexpected status: %v", body["status"])
			}

			errs, _ := body["errors"].(map[string]any)
			if errs == nil {
				t.Fatalf("expected errors object, body=%s", w.Body.String())
			}
			if _, ok := errs[tc.wantField]; !ok {
				t.Fatalf("expected error for %q, got %v", tc.wantField, errs)
			}

			if len(orgs.created) != 0 {
				t.Fatalf("no organisation may be created on validation failure")
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users := &fakeUserStore{
		createFn: func(ctx context.Context, tx pgx.Tx, u user.User) (user.User, error) {
			return user.User{}, postgres.ErrEmailTaken
		},
	}
	orgs := &fakeOrgCreator{}
	r := newAuthRouter(users, orgs, auth.NewManager("test-secret", 5*time.Minute))

	w := postJSON(t, r, "/auth/register",
		`{"first_name":"Jane","last_name":"Doe","email":"john@example.com","password":"password123"}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got status %d, want 422, body=%s", w.Code, w.Body.String())
	}

	body := decodeEnvelope(t, w)

	errs, _ := body["errors"].(map[string]any)
	if errs == nil {
		t.Fatalf("duplicate email must produce an errors object")
	}
	if _, ok := errs["email"]; !ok {
		t.Fatalf("expected email error, got %v", errs)
	}

	if len(orgs.created) != 0 {
		t.Fatalf("no organisation may be created for a duplicate email")
	}
	if users.tx != nil && users.tx.commits != 0 {
		t.Fatalf("failed registration must not commit")
	}
}

func TestLogin(t *testing.T) {
	hash, err := security.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	known := user.User{
		ID:           7,
		UserID:       "c0ffee",
		Email:        "john@example.com",
		PasswordHash: hash,
		FirstName:    "John",
		LastName:     "Doe",
		IsActive:     true,
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "correct credentials",
			body:       `{"email":"john@example.com","password":"password123"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			body:       `{"email":"john@example.com","password":"wrong"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown email",
			body:       `{"email":"ghost@example.com","password":"password123"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed body",
			body:       `{"email":"john@example.com"}`,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &fakeUserStore{
				getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
					if email == known.Email {
						return known, nil
					}
					return user.User{}, postgres.ErrUserNotFound
				},
			}
			jwt := auth.NewManager("test-secret", 5*time.Minute)
			r := newAuthRouter(users, &fakeOrgCreator{}, jwt)

			w := postJSON(t, r, "/auth/login", tc.body)

			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}

			body := decodeEnvelope(t, w)

			if tc.wantStatus == http.StatusOK {
				data, _ := body["data"].(map[string]any)
				token, _ := data["accessToken"].(string)

				claims, err := jwt.VerifyAccessToken(token)
				if err != nil {
					t.Fatalf("issued token does not verify: %v", err)
				}
				if claims.UserID != known.ID || claims.Email != known.Email {
					t.Fatalf("unexpected claims: %+v", claims)
				}

				if len(users.touched) != 1 || users.touched[0] != known.ID {
					t.Fatalf("last_login not touched: %v", users.touched)
				}
				return
			}

			// failures share one shape: statusCode, no errors key
			if body["message"] != "Authentication failed" {
				t.Fatalf("unexpected message: %v", body["message"])
			}
			if body["statusCode"] != float64(http.StatusUnauthorized) {
				t.Fatalf("expected statusCode 401, got %v", body["statusCode"])
			}
			if _, ok := body["errors"]; ok {
				t.Fatalf("authentication failures must not carry an errors key")
			}
		})
	}
}

func TestRegister_OrgCreationFailureRollsBack(t *testing.T) {
	users := &fakeUserStore{}
	orgs := &fakeOrgCreator{fail: errors.New("insert failed")}
	r := newAuthRouter(users, orgs, auth.NewManager("test-secret", 5*time.Minute))

	w := postJSON(t, r, "/auth/register",
		`{"first_name":"John","last_name":"Doe","email":"john@example.com","password":"password123"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500, body=%s", w.Code, w.Body.String())
	}

	if users.tx == nil {
		t.Fatalf("expected a transaction to have been started")
	}
	if users.tx.commits != 0 {
		t.Fatalf("user creation must not commit when the default org insert fails")
	}
	if users.tx.rollbacks == 0 {
		t.Fatalf("expected rollback")
	}
}
