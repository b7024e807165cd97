package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/config"
	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/repository"
)

func setupAuth(t *testing.T) (*AuthService, repository.OperatorRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Operator{}))

	operators := repository.NewOperatorRepository(db)
	svc := NewAuthService(operators, config.JWTConfig{Secret: "test-secret", TTL: time.Hour})
	return svc, operators
}

func TestLoginAndParse(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()
	require.NoError(t, svc.EnsureOperator(ctx, "admin", "s3cret"))

	token, op, err := svc.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "admin", op.Username)
	assert.NotNil(t, op.LastLoginAt)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, op.ID, claims.OperatorID)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
}

func TestLoginBadPassword(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()
	require.NoError(t, svc.EnsureOperator(ctx, "admin", "s3cret"))

	_, _, err := svc.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := setupAuth(t)
	_, _, err := svc.Login(context.Background(), "nobody", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabledOperator(t *testing.T) {
	svc, operators := setupAuth(t)
	ctx := context.Background()
	require.NoError(t, svc.EnsureOperator(ctx, "admin", "s3cret"))

	op, err := operators.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	op.IsActive = false
	require.NoError(t, operators.Save(ctx, op))

	_, _, err = svc.Login(ctx, "admin", "s3cret")
	assert.ErrorIs(t, err, ErrOperatorDisabled)
}

func TestParseRejectsForgedToken(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()
	require.NoError(t, svc.EnsureOperator(ctx, "admin", "s3cret"))
	token, _, err := svc.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)

	other := NewAuthService(nil, config.JWTConfig{Secret: "another-secret", TTL: time.Hour})
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestEnsureOperatorIdempotent(t *testing.T) {
	svc, operators := setupAuth(t)
	ctx := context.Background()
	require.NoError(t, svc.EnsureOperator(ctx, "admin", "first"))
	// 已存在则不覆盖密码
	require.NoError(t, svc.EnsureOperator(ctx, "admin", "second"))

	_, _, err := svc.Login(ctx, "admin", "first")
	require.NoError(t, err)
	op, err := operators.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, op.IsActive)
}
