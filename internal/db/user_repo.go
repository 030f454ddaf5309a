package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"vonvault/internal/types"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// UserRepository provides data access for the users table. It satisfies
// membership.UserReader, membership.MembershipWriter and
// membership.MemberStore.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// userColumns defines the standard set of columns selected for user queries.
// Used consistently across all query methods to avoid column drift.
const userColumns = `u.user_id, u.id_number, u.membership_level, u.membership_granted_at,
	u.created_at, u.updated_at`

// scanUser scans a single user row into a types.User struct.
// The columns must match the order defined in userColumns.
func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var level string
	err := row.Scan(
		&u.UserID,
		&u.IDNumber,
		&level,
		&u.MembershipGrantedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	parsed, err := types.ParseMembershipLevel(level)
	if err != nil {
		return nil, err
	}
	u.MembershipLevel = parsed
	return &u, nil
}

// GetUser retrieves a user by user_id.
// Returns ErrCodeNotFoundUser if no user exists.
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.user_id = $1`,
		userID,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}

// SetMembershipLevel rewrites the cached membership level.
// Returns ErrCodeNotFoundUser if the user does not exist.
func (r *UserRepository) SetMembershipLevel(ctx context.Context, userID string, level types.MembershipLevel) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET membership_level = $2, updated_at = NOW()
		 WHERE user_id = $1`,
		userID,
		level.String(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update membership level", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// GrantBasicMembership moves a user from no membership to Basic. The WHERE
// clause makes it a no-op for existing members, so repeated onboarding calls
// never downgrade a tier.
func (r *UserRepository) GrantBasicMembership(ctx context.Context, userID string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET membership_level = $2, membership_granted_at = $3, updated_at = $3
		 WHERE user_id = $1 AND membership_level = $4`,
		userID,
		types.LevelBasic.String(),
		at,
		types.LevelNone.String(),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to grant membership", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CreateMember inserts a user and returns the stored row, including the
// database-assigned id_number. An existing user_id yields
// ErrCodeConflictUserExists.
func (r *UserRepository) CreateMember(ctx context.Context, user *types.User) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users AS u (user_id, membership_level, membership_granted_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		user.UserID,
		user.MembershipLevel.String(),
		user.MembershipGrantedAt,
		user.CreatedAt,
		user.UpdatedAt,
	)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, types.NewAppError(types.ErrCodeConflictUserExists, "user already exists", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return created, nil
}
