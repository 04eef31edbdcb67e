package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/orghub/internal/auth"
	"github.com/geocoder89/orghub/internal/config"
	"github.com/geocoder89/orghub/internal/domain/organisation"
	"github.com/geocoder89/orghub/internal/domain/user"
	"github.com/geocoder89/orghub/internal/repo/postgres"
	"github.com/geocoder89/orghub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	TouchLastLogin(ctx context.Context, id int64) error
}

type OrganisationCreator interface {
	CreateTx(ctx context.Context, tx pgx.Tx, org organisation.Organisation, memberID int64) (organisation.Organisation, error)
}

type AuthHandler struct {
	users UserStore
	orgs  OrganisationCreator
	jwt   *auth.Manager
}

func NewAuthHandler(users UserStore, orgs OrganisationCreator, jwtManager *auth.Manager) *AuthHandler {
	return &AuthHandler{
		users: users,
		orgs:  orgs,
		jwt:   jwtManager,
	}
}

// Register creates the user, its default organisation and the membership link
// in one transaction, then hands back an access token.
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	errs, ok := BindJSON(ctx, &req)

	if !ok {
		RespondUnprocessable(ctx, "Registration unsuccessful", errs)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Registration unsuccessful")
		return
	}

	tx, err := h.users.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Registration unsuccessful")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	u, err := h.users.CreateTx(cctx, tx, user.User{
		UserID:       uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		IsActive:     true,
	})

	if err != nil {
		if errors.Is(err, postgres.ErrEmailTaken) {
			RespondUnprocessable(ctx, "Registration unsuccessful", map[string]string{
				"email": "user with this email already exists",
			})
			return
		}

		RespondInternal(ctx, "Registration unsuccessful")
		return
	}

	_, err = h.orgs.CreateTx(cctx, tx, organisation.Organisation{
		OrgID: uuid.NewString(),
		Name:  organisation.DefaultName(u.FirstName),
	}, u.ID)

	if err != nil {
		RespondInternal(ctx, "Registration unsuccessful")
		return
	}

	err = tx.Commit(cctx)

	if err != nil {
		RespondInternal(ctx, "Registration unsuccessful")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email)

	if err != nil {
		RespondInternal(ctx, "Registration unsuccessful")
		return
	}

	RespondSuccess(ctx, http.StatusCreated, "Registration successful", gin.H{
		"accessToken": accessToken,
		"user":        u.Profile(),
	})
}

// Login deliberately answers every failure mode the same way; only the status
// code separates bad credentials from a malformed body.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if _, ok := BindJSON(ctx, &req); !ok {
		RespondUnAuthorized(ctx, "Authentication failed")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		RespondUnAuthorized(ctx, "Authentication failed")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "Authentication failed")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(foundUser.ID, foundUser.Email)

	if err != nil {
		RespondInternal(ctx, "Authentication failed")
		return
	}

	// login bookkeeping; the login itself already succeeded
	if err := h.users.TouchLastLogin(cctx, foundUser.ID); err != nil {
		slog.Default().WarnContext(ctx.Request.Context(), "touch last_login failed", "err", err)
	}

	RespondSuccess(ctx, http.StatusOK, "Login successful", gin.H{
		"accessToken": accessToken,
		"user":        foundUser.Profile(),
	})
}
