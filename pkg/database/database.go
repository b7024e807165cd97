package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/content-factory/config"
	"github.com/d60-Lab/content-factory/internal/model"
)

// InitDB 按配置打开数据库连接
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.Database.DSN), gcfg)
	case "sqlite", "":
		db, err = gorm.Open(sqlite.Open(cfg.Database.DSN), gcfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 建表（生产环境建议用迁移工具）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Operator{},
		&model.Group{},
		&model.Proxy{},
		&model.Account{},
		&model.Post{},
		&model.Execution{},
		&model.ActivityLog{},
		&model.TranslationCache{},
	)
}
