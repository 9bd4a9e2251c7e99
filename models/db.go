package models

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"make-comics-server/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

//go:embed migrations
var migrationsFS embed.FS

var DB *sql.DB
var GormDB *gorm.DB

// InitDB opens the configured database, applies migrations and sets DB and GormDB.
func InitDB() {
	if config.AppConfig == nil {
		zap.L().Fatal("config.AppConfig is nil, call config.InitConfig first")
	}
	cfg := config.AppConfig.Database

	sqlDB, gormDB, err := Open(cfg.Driver, cfg.DSN)
	if err != nil {
		zap.L().Fatal("database open failed", zap.String("driver", cfg.Driver), zap.Error(err))
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := Migrate(sqlDB, cfg.Driver); err != nil {
		zap.L().Fatal("database migration failed", zap.Error(err))
	}

	DB = sqlDB
	GormDB = gormDB
	zap.L().Info("database ready", zap.String("driver", cfg.Driver))
}

// Open connects with database/sql and wraps the same pool in gorm.
func Open(driver, dsn string) (*sql.DB, *gorm.DB, error) {
	var (
		sqlDB     *sql.DB
		dialector gorm.Dialector
		err       error
	)
	switch driver {
	case "mysql":
		sqlDB, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		dialector = mysql.New(mysql.Config{Conn: sqlDB})
	case "postgres":
		sqlDB, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", driver)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("gorm init: %w", err)
	}
	return sqlDB, gormDB, nil
}

// Migrate applies the embedded migrations for driver. The sql.DB stays open.
func Migrate(db *sql.DB, driver string) error {
	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	var dbDriver database.Driver
	switch driver {
	case "mysql":
		dbDriver, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	case "postgres":
		dbDriver, err = migratepg.WithInstance(db, &migratepg.Config{})
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
