// Package database opens GORM connections to TimescaleDB.
package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/stormtrack/internal/log"
	"go.uber.org/zap"
)

// NewGormLogger routes GORM's logging through the application's zap logger
func NewGormLogger(level logger.LogLevel) logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  level,       // Log level
			IgnoreRecordNotFoundError: false,       // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,
		},
	)
}

// CreateConnection connects to a TimescaleDB database
func CreateConnection(connectionString string) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger: NewGormLogger(logger.Warn),
	}

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), config)
	if err != nil {
		log.Warn("warning: unable to create a TimescaleDB connection:", err)
		return nil, err
	}
	log.Info("TimescaleDB connection successful")

	return db, nil
}
