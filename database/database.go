package database

import (
	"context"
	"fmt"
	"strings"

	"contract-engine/config"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	gormMysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const tcp = "tcp"

var (
	// List entities to auto-migrate
	entities = []interface{}{
		DecoratorRecord{},
		RequestRecord{},
		StatusSnapshot{},
	}
	DBBatchesSize = 1000
)

func ConnectAndInitialize(ctx context.Context, cfg *config.DBConfig) (*gorm.DB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("ConnectAndInitialize: Connect: %w", err)
	}

	if err := initialize(ctx, db, cfg.DropTableAtStart); err != nil {
		return nil, err
	}
	return db, nil
}

func initialize(ctx context.Context, db *gorm.DB, dropTables bool) error {
	db = db.WithContext(ctx)
	if dropTables {
		err := db.Migrator().DropTable(entities...)
		if err != nil {
			return errors.Wrap(err, "ConnectAndInitialize: DropTable")
		}
	}

	// Initialize - auto migrate
	err := db.AutoMigrate(entities...)
	if err != nil {
		return errors.Wrap(err, "ConnectAndInitialize: AutoMigrate")
	}
	return nil
}

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite"
)

func Connect(cfg *config.DBConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case DriverMysql, "":
		return connectMysql(cfg)
	case DriverSqlite:
		return connectSqlite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func connectMysql(cfg *config.DBConfig) (*gorm.DB, error) {
	dbConfig := mysql.Config{
		User:                 cfg.Username,
		Passwd:               cfg.Password,
		Net:                  tcp,
		Addr:                 fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DBName:               cfg.Database,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	return gorm.Open(gormMysql.Open(dbConfig.FormatDSN()), gormConfig(cfg))
}

// connectSqlite opens a sqlite database with a single connection, since
// sqlite serializes writers anyway.
func connectSqlite(cfg *config.DBConfig) (*gorm.DB, error) {
	dsn := "file::memory:?cache=shared"
	switch {
	case strings.HasPrefix(cfg.Database, "file:"):
		dsn = cfg.Database
	case cfg.Database != "":
		dsn = fmt.Sprintf("file:%s?cache=shared", cfg.Database)
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cfg))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func gormConfig(cfg *config.DBConfig) *gorm.Config {
	return &gorm.Config{
		Logger:          gormlogger.Default.LogMode(getGormLogLevel(cfg)),
		CreateBatchSize: DBBatchesSize,
	}
}

func getGormLogLevel(cfg *config.DBConfig) gormlogger.LogLevel {
	if cfg.LogQueries {
		return gormlogger.Info
	}

	return gormlogger.Silent
}
