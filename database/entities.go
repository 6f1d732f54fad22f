package database

import (
	"time"

	"contract-engine/request"

	"gorm.io/datatypes"
)

// BaseEntity is an abstract entity for rows keyed by an auto increment id
type BaseEntity struct {
	ID uint64 `gorm:"primaryKey"`
}

// RequestRecord stores every request kind in one table. Params holds the
// kind specific fields as JSON. ActualWallet, SignedMessage and TxHash stay
// NULL until attached and are written at most once.
type RequestRecord struct {
	ID              string `gorm:"type:varchar(36);primaryKey"`
	Kind            string `gorm:"type:varchar(20);index"`
	ChainID         int64
	CustomRPCURL    *string `gorm:"type:varchar(255)"`
	RequestedWallet string  `gorm:"type:varchar(42)"`
	ActualWallet    *string `gorm:"type:varchar(42)"`
	SignedMessage   *string `gorm:"type:varchar(1000)"`
	TxHash          *string `gorm:"type:varchar(66);index"`
	DecoratorID     *string `gorm:"type:varchar(36);index"`
	Params          datatypes.JSON
	ArbitraryData   datatypes.JSON
	ScreenConfig    datatypes.JSONType[request.ScreenConfig]
	RedirectURL     string    `gorm:"type:varchar(1000)"`
	CreatedAt       time.Time `gorm:"index"`
}

// DecoratorRecord stores a contract decorator as JSON.
type DecoratorRecord struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	Name        string `gorm:"type:varchar(255)"`
	Description string `gorm:"type:varchar(1000)"`
	Definition  datatypes.JSON
	CreatedAt   time.Time
}

// StatusSnapshot is the latest resolved status of a request. It is a
// cache for listings and the poller, never an input of resolution.
type StatusSnapshot struct {
	BaseEntity
	RequestID   string `gorm:"type:varchar(36);uniqueIndex"`
	Status      string `gorm:"type:varchar(10);index"`
	Reason      string `gorm:"type:varchar(1000)"`
	Wallet      string `gorm:"type:varchar(42)"`
	BlockNumber *uint64
	Response    datatypes.JSON
	ResolvedAt  time.Time
}
