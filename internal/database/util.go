package database

import (
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const memoryDSN = ":memory:"

func GetDatabase(dsn string, debug bool) (*gorm.DB, error) {
	conf := &gorm.Config{TranslateError: true}

	if !debug {
		conf.Logger = logger.Default.LogMode(logger.Silent)
	} else {
		conf.Logger = logger.Default.LogMode(logger.Info)
	}

	slog.Info("open sqlite database " + dsn)

	db, err := gorm.Open(sqlite.Open(dsn), conf)
	if err != nil {
		slog.Error("db open error", slog.Any("error", err))
		return nil, err
	}

	// every connection to :memory: is a separate database
	if dsn == memoryDSN {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}

		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}
