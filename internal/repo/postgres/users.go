package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/orghub/internal/domain/user"
	"github.com/geocoder89/orghub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already taken")
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

const userColumns = `id, user_id, email, password_hash, first_name, last_name, phone,
	is_active, is_admin, is_staff, is_superuser, last_login, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}

// CreateTx inserts a user inside the caller's transaction so registration can
// create the user and its default organisation both-or-neither. A concurrent
// registration with the same email loses on the unique index and surfaces as
// ErrEmailTaken.
func (r *UsersRepo) CreateTx(ctx context.Context, tx pgx.Tx, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	err := r.observe("users.create_tx.insert", func() error {
		return tx.QueryRow(ctx, `
			INSERT INTO users (user_id, email, password_hash, first_name, last_name, phone,
				is_active, is_admin, is_staff, is_superuser, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			RETURNING id
		`, u.UserID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone,
			u.IsActive, u.IsAdmin, u.IsStaff, u.IsSuperuser, u.CreatedAt, u.UpdatedAt,
		).Scan(&u.ID)
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `WHERE email = $1`, email)
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `WHERE id = $1`, id)
}

// GetByUserID looks up a user by the externally exposed identifier.
func (r *UsersRepo) GetByUserID(ctx context.Context, userID string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_user_id", `WHERE user_id = $1`, userID)
}

func (r *UsersRepo) getOne(ctx context.Context, op, where string, arg any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users `+where,
			arg,
		).Scan(
			&u.ID,
			&u.UserID,
			&u.Email,
			&u.PasswordHash,
			&u.FirstName,
			&u.LastName,
			&u.Phone,
			&u.IsActive,
			&u.IsAdmin,
			&u.IsStaff,
			&u.IsSuperuser,
			&u.LastLogin,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// TouchLastLogin records login bookkeeping; the only mutation a user row sees
// after creation.
func (r *UsersRepo) TouchLastLogin(ctx context.Context, id int64) error {
	return r.observe("users.touch_last_login", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`,
			time.Now().UTC(), id,
		)
		return err
	})
}
