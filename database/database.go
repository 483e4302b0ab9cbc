package database

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bikes-api/models"
)

// Initialize opens the database for the given driver ("mysql" or "sqlite").
// SQL statements are logged through log at a level derived from its own.
func Initialize(driver, databaseURL string, log *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(databaseURL)
	case "sqlite":
		dialector = sqlite.Open(databaseURL)
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   newGormLogger(log),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	return db, nil
}

// EnableTracing attaches the OpenTelemetry plugin so every query becomes a span.
func EnableTracing(db *gorm.DB) error {
	return db.Use(otelgorm.NewPlugin())
}

func newGormLogger(log *logrus.Logger) logger.Interface {
	if log == nil {
		return logger.Discard
	}

	level := logger.Warn
	switch {
	case log.IsLevelEnabled(logrus.DebugLevel):
		level = logger.Info
	case !log.IsLevelEnabled(logrus.WarnLevel):
		level = logger.Error
	}

	return logger.New(log, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Bike{},
		&models.UserSession{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	return nil
}

// SeedData populates an empty database with a demo user and a few bikes.
func SeedData(db *gorm.DB, log *logrus.Logger) error {
	var userCount int64
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		return errors.Wrap(err, "count users")
	}

	if userCount > 0 {
		log.Info("Database already has data, skipping seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash seed password")
	}

	return db.Transaction(func(tx *gorm.DB) error {
		user := models.User{
			Email:             "rider@example.com",
			EncryptedPassword: string(hash),
		}
		if err := tx.Create(&user).Error; err != nil {
			return errors.Wrap(err, "create seed user")
		}

		bikes := []models.Bike{
			{Brand: "Trek", Model: "Domane", ModelYear: 2019, UserID: user.ID},
			{Brand: "Specialized", Model: "Stumpjumper", ModelYear: 2018, UserID: user.ID},
			{Brand: "Cannondale", Model: "Synapse", ModelYear: 2017, UserID: user.ID},
		}
		if err := tx.Create(&bikes).Error; err != nil {
			return errors.Wrap(err, "create seed bikes")
		}

		log.WithField("user", user.Email).Info(fmt.Sprintf("Database seeded with %d bikes", len(bikes)))
		return nil
	})
}
