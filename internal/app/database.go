package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/talkincode/botfleet/config"
)

// getDatabase opens the configured backend. Postgres serves deployments;
// sqlite keeps single-node installs and tests self-contained.
func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	switch cfg.Type {
	case "sqlite":
		return getSqliteDatabase(cfg, workdir)
	default:
		return getPgDatabase(cfg)
	}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
}

func getPgDatabase(cfg config.DBConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		zap.S().Panicf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Panicf("failed to access database pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConn)
	sqlDB.SetMaxIdleConns(cfg.IdleConn)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db
}

func getSqliteDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	name := cfg.Name
	if name == "" {
		name = "botfleet"
	}
	path := filepath.Join(workdir, name+".db")
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		zap.S().Panicf("failed to open sqlite database: %v", err)
	}
	return db
}
