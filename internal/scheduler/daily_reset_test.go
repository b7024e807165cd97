package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/repository"
)

func TestUntilNextMidnightUTC(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 59, 30, 0, time.UTC)
	assert.Equal(t, 30*time.Second, untilNextMidnightUTC(now))

	now = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 24*time.Hour, untilNextMidnightUTC(now))
}

func TestRunOnceResetsCounters(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Account{}))

	accounts := repository.NewAccountRepository(db)
	ctx := context.Background()
	for i, n := range []int{3, 0, 7} {
		a := &model.Account{
			ID:               uuid.New().String(),
			Username:         string(rune('a' + i)),
			Password:         "pw",
			Language:         "en",
			PostsLimitPerDay: 10,
			PostsCountToday:  n,
			Status:           model.AccountStatusActive,
			AuthState:        model.AuthStateAuthenticated,
		}
		require.NoError(t, accounts.Create(ctx, a))
	}

	NewDailyReset(accounts).runOnce()

	all, err := accounts.List(ctx, repository.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, a := range all {
		assert.Zero(t, a.PostsCountToday)
	}
}
