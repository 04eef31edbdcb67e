package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/orghub/internal/domain/organisation"
	"github.com/geocoder89/orghub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrOrganisationNotFound covers both a missing organisation and a caller who
// is not a member. Collapsing the two keeps non-members from learning whether
// an organisation exists.
var ErrOrganisationNotFound = errors.New("organisation not found")

type OrganisationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewOrganisationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *OrganisationsRepo {
	return &OrganisationsRepo{pool: pool, prom: prom}
}

func (r *OrganisationsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// CreateTx inserts an organisation and its first member inside the caller's
// transaction. Every organisation has at least one member from the moment it
// exists.
func (r *OrganisationsRepo) CreateTx(ctx context.Context, tx pgx.Tx, org organisation.Organisation, memberID int64) (organisation.Organisation, error) {
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	err := r.observe("organisations.create_tx.insert", func() error {
		return tx.QueryRow(ctx, `
			INSERT INTO organisations (org_id, name, description, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`, org.OrgID, org.Name, org.Description, org.CreatedAt, org.UpdatedAt).Scan(&org.ID)
	})

	if err != nil {
		return organisation.Organisation{}, err
	}

	err = r.observe("organisations.create_tx.membership", func() error {
		_, e := tx.Exec(ctx, `
			INSERT INTO organisation_members (organisation_id, user_id, created_at)
			VALUES ($1,$2,$3)
		`, org.ID, memberID, now)
		return e
	})

	if err != nil {
		return organisation.Organisation{}, err
	}

	return org, nil
}

// Create wraps CreateTx in its own transaction.
func (r *OrganisationsRepo) Create(ctx context.Context, org organisation.Organisation, memberID int64) (created organisation.Organisation, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	created, err = r.CreateTx(ctx, tx, org, memberID)

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		created = organisation.Organisation{}
	}

	return
}

// ListForUser returns every organisation the user is a member of. Ordering by
// row id keeps the output stable; callers don't rely on it.
func (r *OrganisationsRepo) ListForUser(ctx context.Context, userID int64) ([]organisation.Organisation, error) {
	var orgs []organisation.Organisation

	err := r.observe("organisations.list_for_user", func() error {
		rows, e := r.pool.Query(ctx, `
			SELECT o.id, o.org_id, o.name, o.description, o.created_at, o.updated_at
			FROM organisations o
			JOIN organisation_members m ON m.organisation_id = o.id
			WHERE m.user_id = $1
			ORDER BY o.id
		`, userID)

		if e != nil {
			return e
		}

		defer rows.Close()

		for rows.Next() {
			var o organisation.Organisation

			if e := rows.Scan(&o.ID, &o.OrgID, &o.Name, &o.Description, &o.CreatedAt, &o.UpdatedAt); e != nil {
				return e
			}

			orgs = append(orgs, o)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	if orgs == nil {
		orgs = []organisation.Organisation{}
	}

	return orgs, nil
}

// GetForMember fetches an organisation by its external id, but only when the
// given user is currently a member. The membership join IS the authorization
// check.
func (r *OrganisationsRepo) GetForMember(ctx context.Context, orgID string, userID int64) (organisation.Organisation, error) {
	var o organisation.Organisation

	err := r.observe("organisations.get_for_member", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT o.id, o.org_id, o.name, o.description, o.created_at, o.updated_at
			FROM organisations o
			JOIN organisation_members m ON m.organisation_id = o.id
			WHERE o.org_id = $1 AND m.user_id = $2
		`, orgID, userID).Scan(&o.ID, &o.OrgID, &o.Name, &o.Description, &o.CreatedAt, &o.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return organisation.Organisation{}, ErrOrganisationNotFound
		}

		return organisation.Organisation{}, err
	}

	return o, nil
}

// AddMember links a user to an organisation. Re-adding an existing member is
// a no-op, not an error.
func (r *OrganisationsRepo) AddMember(ctx context.Context, organisationID, userID int64) error {
	return r.observe("organisations.add_member", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO organisation_members (organisation_id, user_id, created_at)
			VALUES ($1,$2,$3)
			ON CONFLICT (organisation_id, user_id) DO NOTHING
		`, organisationID, userID, time.Now().UTC())
		return err
	})
}
