package database

import (
	"context"
	"fmt"

	"contract-engine/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TestDBConfig is a private in-memory sqlite database, distinct for every
// call.
func TestDBConfig() *config.DBConfig {
	return &config.DBConfig{
		Driver:   DriverSqlite,
		Database: fmt.Sprintf("file:test%s?mode=memory&cache=shared", uuid.NewString()),
	}
}

func ConnectAndInitializeTestDB(ctx context.Context) (*gorm.DB, error) {
	return ConnectAndInitialize(ctx, TestDBConfig())
}
