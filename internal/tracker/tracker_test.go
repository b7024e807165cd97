package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/repository"
)

func setupTracker(t *testing.T) (*Tracker, repository.ExecutionRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Execution{}))

	execs := repository.NewExecutionRepository(db)
	return New(execs), execs
}

func TestCreateBatch(t *testing.T) {
	tr, _ := setupTracker(t)
	ctx := context.Background()

	batch, err := tr.CreateBatch(ctx, "post-1", []string{"a1", "a2", "a3"})
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for _, e := range batch {
		assert.Equal(t, model.ExecutionStatusQueued, e.Status)
	}

	stats, err := tr.Statistics(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Queued)
	assert.Equal(t, int64(3), stats.Total)
}

func TestCreateBatchIdempotent(t *testing.T) {
	tr, _ := setupTracker(t)
	ctx := context.Background()

	batch, err := tr.CreateBatch(ctx, "post-1", []string{"a1", "a2", "a3"})
	require.NoError(t, err)

	// a1 成功，a2 失败，a3 仍排队
	byAccount := make(map[string]*model.Execution)
	for _, e := range batch {
		byAccount[e.AccountID] = e
	}
	require.NoError(t, tr.MarkPosting(ctx, byAccount["a1"].ID))
	require.NoError(t, tr.MarkSuccess(ctx, byAccount["a1"].ID, "m-1"))
	require.NoError(t, tr.MarkFailed(ctx, byAccount["a2"].ID, "timeout"))

	again, err := tr.CreateBatch(ctx, "post-1", []string{"a1", "a2", "a3"})
	require.NoError(t, err)
	// 成功的跳过；失败的重置；排队的保持
	require.Len(t, again, 2)

	stats, err := tr.Statistics(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Success)
	assert.Equal(t, int64(2), stats.Queued)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(3), stats.Total)

	for _, e := range again {
		assert.Equal(t, model.ExecutionStatusQueued, e.Status)
		assert.Empty(t, e.ErrorMessage)
	}
}

func TestTransitions(t *testing.T) {
	tr, _ := setupTracker(t)
	ctx := context.Background()

	batch, err := tr.CreateBatch(ctx, "post-1", []string{"a1"})
	require.NoError(t, err)
	id := batch[0].ID

	// queued → success 不允许，必须先 posting
	assert.ErrorIs(t, tr.MarkSuccess(ctx, id, "m"), ErrInvalidTransition)

	require.NoError(t, tr.MarkPosting(ctx, id))
	// 重复 posting 被拒
	assert.ErrorIs(t, tr.MarkPosting(ctx, id), ErrInvalidTransition)

	require.NoError(t, tr.MarkSuccess(ctx, id, "media-9"))
	// 终态不可再迁移
	assert.ErrorIs(t, tr.MarkFailed(ctx, id, "late"), ErrInvalidTransition)
	assert.ErrorIs(t, tr.MarkPosting(ctx, id), ErrInvalidTransition)

	got, err := tr.ListByPost(ctx, "post-1", nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "media-9", got[0].RemoteMediaID)
	assert.NotNil(t, got[0].PostedAt)
}

func TestMarkFailedFromQueued(t *testing.T) {
	tr, _ := setupTracker(t)
	ctx := context.Background()

	batch, err := tr.CreateBatch(ctx, "post-1", []string{"a1"})
	require.NoError(t, err)

	require.NoError(t, tr.MarkFailed(ctx, batch[0].ID, "no session"))
	stats, err := tr.Statistics(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestListByPostStatusFilter(t *testing.T) {
	tr, _ := setupTracker(t)
	ctx := context.Background()

	batch, err := tr.CreateBatch(ctx, "post-1", []string{"a1", "a2"})
	require.NoError(t, err)
	require.NoError(t, tr.MarkPosting(ctx, batch[0].ID))
	require.NoError(t, tr.MarkSuccess(ctx, batch[0].ID, "m"))

	st := model.ExecutionStatusSuccess
	got, err := tr.ListByPost(ctx, "post-1", &st, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, batch[0].AccountID, got[0].AccountID)
}
