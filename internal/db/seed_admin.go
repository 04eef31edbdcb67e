package db

import (
	"context"
	"errors"

	"github.com/geocoder89/orghub/internal/config"
	"github.com/geocoder89/orghub/internal/domain/organisation"
	"github.com/geocoder89/orghub/internal/domain/user"
	"github.com/geocoder89/orghub/internal/repo/postgres"
	"github.com/geocoder89/orghub/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser seeds a bootstrap superuser (and its default organisation)
// when ADMIN_EMAIL/ADMIN_PASSWORD are configured. Safe to run on every boot.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	users := postgres.NewUsersRepo(pool, nil)
	orgs := postgres.NewOrganisationsRepo(pool, nil)

	_, err := users.GetByEmail(ctx, cfg.AdminEmail)

	if err == nil {
		return nil
	}

	if !errors.Is(err, postgres.ErrUserNotFound) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	tx, err := users.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	u, err := users.CreateTx(ctx, tx, user.User{
		UserID:       uuid.NewString(),
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		FirstName:    cfg.AdminFirstName,
		LastName:     cfg.AdminLastName,
		IsActive:     true,
		IsAdmin:      true,
		IsStaff:      true,
		IsSuperuser:  true,
	})

	if err != nil {
		// lost a race with another instance seeding the same admin
		if errors.Is(err, postgres.ErrEmailTaken) {
			return nil
		}
		return err
	}

	_, err = orgs.CreateTx(ctx, tx, organisation.Organisation{
		OrgID: uuid.NewString(),
		Name:  organisation.DefaultName(u.FirstName),
	}, u.ID)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
