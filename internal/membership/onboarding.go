package membership

import (
	"context"
	"log/slog"
	"time"

	"vonvault/internal/types"
)

// MemberStore persists membership grants and new member accounts.
type MemberStore interface {
	UserReader
	// GrantBasicMembership sets level basic and the grant time for a user
	// whose level is none. It reports false when no row changed, either
	// because the user is already a member or because the user does not exist.
	GrantBasicMembership(ctx context.Context, userID string, at time.Time) (bool, error)
	// CreateMember inserts a user with the next sequential id number and
	// returns the stored row. An existing user_id is a conflict.
	CreateMember(ctx context.Context, user *types.User) (*types.User, error)
}

// Onboarding grants Basic membership at the end of signup and creates user
// records directly at Basic.
type Onboarding struct {
	store  MemberStore
	logger *slog.Logger
	now    func() time.Time
}

// NewOnboarding creates an Onboarding service.
func NewOnboarding(store MemberStore, logger *slog.Logger) *Onboarding {
	if logger == nil {
		logger = slog.Default()
	}
	return &Onboarding{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Complete grants Basic membership to a user with no tier. It is idempotent:
// existing members are returned unchanged. A user with no record yields
// ErrCodeNotFoundUser.
func (o *Onboarding) Complete(ctx context.Context, userID string) (*types.User, error) {
	granted, err := o.store.GrantBasicMembership(ctx, userID, o.now())
	if err != nil {
		return nil, err
	}

	user, err := o.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if granted {
		o.logger.Info("basic membership granted", slog.String("user_id", userID))
	}
	return user, nil
}

// CreateMember creates a user record that starts at Basic.
func (o *Onboarding) CreateMember(ctx context.Context, userID string) (*types.User, error) {
	now := o.now()
	user, err := o.store.CreateMember(ctx, &types.User{
		UserID:              userID,
		MembershipLevel:     types.LevelBasic,
		MembershipGrantedAt: &now,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return nil, err
	}

	var idNumber int64
	if user.IDNumber != nil {
		idNumber = *user.IDNumber
	}
	o.logger.Info("member created",
		slog.String("user_id", user.UserID),
		slog.Int64("id_number", idNumber),
	)
	return user, nil
}
