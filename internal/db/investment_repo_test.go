package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vonvault/internal/types"
)

func TestInvestmentRepository_CreateInvestment_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewInvestmentRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	inv := &types.Investment{
		ID:              "inv_1",
		UserID:          "user_1",
		Name:            "Growth",
		Amount:          decimal.RequireFromString("25000.50"),
		Rate:            6,
		Term:            12,
		TermDays:        360,
		MembershipLevel: types.LevelClub,
		Status:          types.InvestmentActive,
		CreatedAt:       now,
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"),
		[]any{"inv_1", "user_1", "Growth", "25000.5", 6.0, 12, 360, "club", "active", now}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.CreateInvestment(ctx, inv))
	db.AssertExpectations(t)
}

func TestInvestmentRepository_CreateInvestment_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewInvestmentRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.CreateInvestment(context.Background(), &types.Investment{ID: "inv_1"})
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func TestInvestmentRepository_TotalInvested(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"no investments", "0", "0"},
		{"exact cents", "45000.75", "45000.75"},
		{"large", "250000.00", "250000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(mockDBTX)
			repo := NewInvestmentRepository(db)
			ctx := context.Background()

			raw := tt.raw
			db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"user_1"}).Return(&mockRow{
				scanFn: func(dest ...any) error {
					*dest[0].(*string) = raw
					return nil
				},
			})

			total, err := repo.TotalInvested(ctx, "user_1")
			require.NoError(t, err)
			assert.True(t, total.Equal(decimal.RequireFromString(tt.want)), "got %s", total)
			db.AssertExpectations(t)
		})
	}
}

func TestInvestmentRepository_TotalInvested_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewInvestmentRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("timeout")})

	_, err := repo.TotalInvested(context.Background(), "user_1")
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func TestInvestmentRepository_ListByUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewInvestmentRepository(db)
	ctx := context.Background()

	t1 := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(-24 * time.Hour)
	rows := newMockRows([][]any{
		{"inv_2", "user_1", "Second", "30000.00", 6.0, 12, 360, "club", "active", t1},
		{"inv_1", "user_1", nil, "1000.00", 3.0, 12, 360, "basic", "completed", t2},
	})
	db.On("Query", ctx, mock.AnythingOfType("string"), []any{"user_1"}).Return(rows, nil)

	invs, err := repo.ListByUser(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, invs, 2)

	assert.Equal(t, "inv_2", invs[0].ID)
	assert.Equal(t, "Second", invs[0].Name)
	assert.True(t, invs[0].Amount.Equal(decimal.NewFromInt(30000)))
	assert.Equal(t, types.LevelClub, invs[0].MembershipLevel)
	assert.Equal(t, 360, invs[0].TermDays)

	assert.Empty(t, invs[1].Name)
	assert.Equal(t, types.InvestmentCompleted, invs[1].Status)
	assert.Equal(t, types.LevelBasic, invs[1].MembershipLevel)
	assert.True(t, rows.closed)
}

func TestInvestmentRepository_ListByUser_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewInvestmentRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(nil), nil)

	invs, err := repo.ListByUser(context.Background(), "user_1")
	require.NoError(t, err)
	assert.NotNil(t, invs)
	assert.Empty(t, invs)
}

func TestInvestmentRepository_ListByUser_Errors(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(nil, errors.New("boom"))

		_, err := NewInvestmentRepository(db).ListByUser(context.Background(), "user_1")
		assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
	})

	t.Run("iteration", func(t *testing.T) {
		db := new(mockDBTX)
		rows := newMockRows(nil)
		rows.errVal = errors.New("conn lost")
		db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

		_, err := NewInvestmentRepository(db).ListByUser(context.Background(), "user_1")
		assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
	})

	t.Run("bad amount", func(t *testing.T) {
		db := new(mockDBTX)
		rows := newMockRows([][]any{
			{"inv_1", "user_1", "x", "not-a-number", 3.0, 12, 360, "basic", "active", time.Now()},
		})
		db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

		_, err := NewInvestmentRepository(db).ListByUser(context.Background(), "user_1")
		assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
	})
}
