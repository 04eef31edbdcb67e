package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/orghub/internal/cache"
	"github.com/geocoder89/orghub/internal/config"
	"github.com/geocoder89/orghub/internal/domain/organisation"
	"github.com/geocoder89/orghub/internal/domain/user"
	"github.com/geocoder89/orghub/internal/http/middlewares"
	"github.com/geocoder89/orghub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrganisationStore interface {
	Create(ctx context.Context, org organisation.Organisation, memberID int64) (organisation.Organisation, error)
	ListForUser(ctx context.Context, userID int64) ([]organisation.Organisation, error)
	GetForMember(ctx context.Context, orgID string, userID int64) (organisation.Organisation, error)
	AddMember(ctx context.Context, organisationID, userID int64) error
}

type MemberResolver interface {
	GetByUserID(ctx context.Context, userID string) (user.User, error)
}

type OrganisationsHandler struct {
	orgs  OrganisationStore
	users MemberResolver
	cache cache.Store
}

func NewOrganisationsHandler(orgs OrganisationStore, users MemberResolver, store cache.Store) *OrganisationsHandler {
	return &OrganisationsHandler{orgs: orgs, users: users, cache: store}
}

// List returns every organisation the caller belongs to. The payload slice is
// cached per user and invalidated on create/add-member.
func (h *OrganisationsHandler) List(ctx *gin.Context) {
	callerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	payloads, ok := h.cachedList(cctx, callerID)

	if !ok {
		orgs, err := h.orgs.ListForUser(cctx, callerID)

		if err != nil {
			RespondInternal(ctx, "Could not fetch organisations")
			return
		}

		payloads = make([]organisation.Payload, 0, len(orgs))

		for _, o := range orgs {
			payloads = append(payloads, o.Payload())
		}

		h.storeList(cctx, callerID, payloads)
	}

	RespondJSONWithETag(ctx, http.StatusOK, Envelope{
		Status:  StatusSuccess,
		Message: "Organisations found",
		Data:    payloads,
	})
}

// Get returns the organisation only to a current member. Non-members get the
// same 404 as a nonexistent org id; existence is not leaked.
func (h *OrganisationsHandler) Get(ctx *gin.Context) {
	callerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	org, err := h.orgs.GetForMember(cctx, ctx.Param("orgId"), callerID)

	if err != nil {
		if errors.Is(err, postgres.ErrOrganisationNotFound) {
			RespondFailure(ctx, http.StatusNotFound, StatusBadRequest, "Organisation not found")
			return
		}

		RespondInternal(ctx, "Could not fetch organisation")
		return
	}

	RespondSuccess(ctx, http.StatusOK, "Organisation found", org.Payload())
}

func (h *OrganisationsHandler) Create(ctx *gin.Context) {
	callerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "Authentication required")
		return
	}

	var req organisation.CreateRequest

	errs, ok := BindJSON(ctx, &req)

	if !ok {
		RespondInvalid(ctx, StatusClientError, "Client error", errs)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	org, err := h.orgs.Create(cctx, organisation.Organisation{
		OrgID:       uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
	}, callerID)

	if err != nil {
		RespondInternal(ctx, "Could not create organisation")
		return
	}

	h.cache.Delete(cctx, cache.OrgListKey(callerID))

	RespondSuccess(ctx, http.StatusCreated, "Organisation created successfully", org.Payload())
}

// AddUser adds a target user to an organisation the caller is a member of.
// Caller-not-a-member and org-missing collapse into one 404; re-adding an
// existing member succeeds without growing the membership set.
func (h *OrganisationsHandler) AddUser(ctx *gin.Context) {
	callerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	org, err := h.orgs.GetForMember(cctx, ctx.Param("orgId"), callerID)

	if err != nil {
		if errors.Is(err, postgres.ErrOrganisationNotFound) {
			RespondFailure(ctx, http.StatusNotFound, StatusClientError, "Organisation not found or permission denied")
			return
		}

		RespondInternal(ctx, "Could not add user to organisation")
		return
	}

	var req organisation.AddMemberRequest

	if _, ok := BindJSON(ctx, &req); !ok {
		// a missing/invalid userId resolves to no user at all
		RespondFailure(ctx, http.StatusNotFound, StatusClientError, "User not found")
		return
	}

	target, err := h.users.GetByUserID(cctx, req.UserID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondFailure(ctx, http.StatusNotFound, StatusClientError, "User not found")
			return
		}

		RespondInternal(ctx, "Could not add user to organisation")
		return
	}

	err = h.orgs.AddMember(cctx, org.ID, target.ID)

	if err != nil {
		RespondInternal(ctx, "Could not add user to organisation")
		return
	}

	h.cache.Delete(cctx, cache.OrgListKey(target.ID))

	RespondSuccess(ctx, http.StatusOK, "User added to organisation successfully", nil)
}

func (h *OrganisationsHandler) cachedList(ctx context.Context, userID int64) ([]organisation.Payload, bool) {
	raw, ok := h.cache.Get(ctx, cache.OrgListKey(userID))

	if !ok {
		return nil, false
	}

	var payloads []organisation.Payload

	if err := json.Unmarshal(raw, &payloads); err != nil {
		h.cache.Delete(ctx, cache.OrgListKey(userID))
		return nil, false
	}

	return payloads, true
}

func (h *OrganisationsHandler) storeList(ctx context.Context, userID int64, payloads []organisation.Payload) {
	raw, err := json.Marshal(payloads)

	if err != nil {
		return
	}

	h.cache.Set(ctx, cache.OrgListKey(userID), raw)
}
