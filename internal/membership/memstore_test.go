package membership

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"vonvault/internal/types"
)

// memStore is an in-memory implementation of every store interface used by
// this package.
type memStore struct {
	mu          sync.Mutex
	users       map[string]*types.User
	investments []types.Investment
	nextID      int64

	totalErr    error
	getUserErr  error
	createErr   error
	setLevelErr []error // consumed one per SetMembershipLevel call
	setCalls    int

	inFlight    int
	maxInFlight int
	createDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*types.User)}
}

func (s *memStore) putUser(userID string, level types.MembershipLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = &types.User{UserID: userID, MembershipLevel: level}
}

func (s *memStore) seed(userID string, amount int64, level types.MembershipLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.investments = append(s.investments, types.Investment{
		ID:              "seed",
		UserID:          userID,
		Amount:          decimal.NewFromInt(amount),
		MembershipLevel: level,
		Status:          types.InvestmentCompleted,
	})
}

func (s *memStore) GetUser(_ context.Context, userID string) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getUserErr != nil {
		return nil, s.getUserErr
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	clone := *u
	return &clone, nil
}

func (s *memStore) TotalInvested(_ context.Context, userID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalErr != nil {
		return decimal.Zero, s.totalErr
	}
	total := decimal.Zero
	for _, inv := range s.investments {
		if inv.UserID == userID {
			total = total.Add(inv.Amount)
		}
	}
	return total, nil
}

func (s *memStore) CreateInvestment(_ context.Context, inv *types.Investment) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	delay := s.createDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if s.createErr != nil {
		return s.createErr
	}
	s.investments = append(s.investments, *inv)
	return nil
}

func (s *memStore) SetMembershipLevel(_ context.Context, userID string, level types.MembershipLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if len(s.setLevelErr) > 0 {
		err := s.setLevelErr[0]
		s.setLevelErr = s.setLevelErr[1:]
		if err != nil {
			return err
		}
	}
	u, ok := s.users[userID]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	u.MembershipLevel = level
	return nil
}

func (s *memStore) GrantBasicMembership(_ context.Context, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.MembershipLevel != types.LevelNone {
		return false, nil
	}
	u.MembershipLevel = types.LevelBasic
	u.MembershipGrantedAt = &at
	return true, nil
}

func (s *memStore) CreateMember(_ context.Context, user *types.User) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.UserID]; exists {
		return nil, types.NewAppError(types.ErrCodeConflictUserExists, "user already exists", nil)
	}
	s.nextID++
	id := s.nextID
	clone := *user
	clone.IDNumber = &id
	s.users[user.UserID] = &clone
	out := clone
	return &out, nil
}

func (s *memStore) investmentsOf(userID string) []types.Investment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Investment
	for _, inv := range s.investments {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out
}

func (s *memStore) levelOf(userID string) types.MembershipLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u.MembershipLevel
	}
	return types.LevelNone
}

var errStoreDown = errors.New("store unavailable")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
