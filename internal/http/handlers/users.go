package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/orghub/internal/config"
	"github.com/geocoder89/orghub/internal/domain/user"
	"github.com/geocoder89/orghub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
)

type UserReader interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type UsersHandler struct {
	users UserReader
}

func NewUsersHandler(users UserReader) *UsersHandler {
	return &UsersHandler{users: users}
}

// GetUser returns any user's public profile to any authenticated caller.
// There is no ownership restriction here, unlike organisation access.
func (h *UsersHandler) GetUser(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil {
		RespondFailure(ctx, http.StatusNotFound, StatusBadRequest, "User not found")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	u, err := h.users.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondFailure(ctx, http.StatusNotFound, StatusBadRequest, "User not found")
			return
		}

		RespondInternal(ctx, "Could not fetch user")
		return
	}

	RespondSuccess(ctx, http.StatusOK, "User found", u.Profile())
}
