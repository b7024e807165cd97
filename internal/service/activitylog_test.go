package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/content-factory/internal/model"
	"github.com/d60-Lab/content-factory/internal/repository"
)

func setupRecorder(t *testing.T, queueSize int) (*ActivityRecorder, repository.ActivityLogRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.ActivityLog{}))

	repo := repository.NewActivityLogRepository(db)
	return NewActivityRecorder(repo, queueSize), repo
}

func TestRecorderPersistsEntries(t *testing.T) {
	rec, repo := setupRecorder(t, 16)
	stop := rec.Start(1)
	defer stop(context.Background())

	rec.Record("acc-1", "login", model.LogStatusSuccess, map[string]string{"ip": "10.0.0.1"}, "", 120*time.Millisecond)
	rec.Record("acc-1", "publish_post", model.LogStatusFailed, nil, "timeout", time.Second)

	require.Eventually(t, func() bool {
		got, err := repo.ListByAccount(context.Background(), "acc-1", 0, 10)
		return err == nil && len(got) == 2
	}, 2*time.Second, 20*time.Millisecond)

	got, err := repo.ListByAccount(context.Background(), "acc-1", 0, 10)
	require.NoError(t, err)
	byAction := make(map[string]*model.ActivityLog)
	for _, e := range got {
		byAction[e.Action] = e
	}
	require.Contains(t, byAction, "login")
	assert.Equal(t, model.LogStatusSuccess, byAction["login"].Status)
	assert.Equal(t, "10.0.0.1", byAction["login"].Details["ip"])
	assert.Equal(t, int64(120), byAction["login"].DurationMS)
	require.Contains(t, byAction, "publish_post")
	assert.Equal(t, "timeout", byAction["publish_post"].ErrorMessage)
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	// worker 未启动，队列装满后继续 Record 不得阻塞
	rec, _ := setupRecorder(t, 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			rec.Record("acc-1", "check_status", model.LogStatusSuccess, nil, "", 0)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on full queue")
	}
	assert.Equal(t, 2, rec.QueueLen())
}

func TestRecorderSystemLevelEntry(t *testing.T) {
	rec, repo := setupRecorder(t, 16)
	stop := rec.Start(1)
	defer stop(context.Background())

	rec.Record("", "daily_reset", model.LogStatusSuccess, nil, "", 0)

	// account_id 为空的流水不挂在任何账号下
	time.Sleep(100 * time.Millisecond)
	got, err := repo.ListByAccount(context.Background(), "acc-1", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
