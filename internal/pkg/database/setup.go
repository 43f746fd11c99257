package database

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/PropFox/app/models"
	"github.com/ManuelReschke/PropFox/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

var DB *gorm.DB

// GetDB returns the shared connection set up by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}

// Models lists every table owned by the application in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Tenant{},
		&models.ServiceProvider{},
		&models.Customer{},
		&models.Property{},
		&models.Worker{},
		&models.Contractor{},
		&models.Contract{},
		&models.ContractProperty{},
		&models.Job{},
		&models.CalendarEntry{},
		&models.Invoice{},
		&models.HistoryEntry{},
		&models.SequenceCounter{},
		&models.Notification{},
	}
}

// Config returns the gorm settings shared by every driver. Unique violations
// are translated to gorm.ErrDuplicatedKey so callers can retry on them.
func Config() *gorm.Config {
	level := logger.Warn
	if env.IsDev() {
		level = logger.Info
	}
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Dialector picks the gorm driver for DB_DRIVER.
func Dialector(driver string) (gorm.Dialector, error) {
	switch driver {
	case "", DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			env.GetEnv("DB_USER", ""),
			env.GetEnv("DB_PASSWORD", ""),
			env.GetEnv("DB_HOST", "127.0.0.1"),
			env.GetEnv("DB_PORT", "3306"),
			env.GetEnv("DB_NAME", ""),
		)
		return mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), nil
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			env.GetEnv("DB_HOST", "127.0.0.1"),
			env.GetEnv("DB_USER", ""),
			env.GetEnv("DB_PASSWORD", ""),
			env.GetEnv("DB_NAME", ""),
			env.GetEnv("DB_PORT", "5432"),
			env.GetEnv("DB_SSLMODE", "disable"),
		)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// AutoMigrate creates or updates all application tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func SetupDatabase() {
	driver := env.GetEnv("DB_DRIVER", DriverMySQL)
	dialector, err := Dialector(driver)
	if err != nil {
		panic(err)
	}

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(dialector, Config())
		if err == nil {
			if env.GetEnv("DB_AUTO_MIGRATE", "true") == "true" {
				if err = AutoMigrate(DB); err != nil {
					panic(fmt.Errorf("auto migrate: %w", err))
				}
			}
			log.Infof("[Database] Connected (%s)", driver)
			return
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}
