package database

import (
	"context"

	"contract-engine/request"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SetOnce applies values to the request row only while guardColumn is
// still NULL. The check and the write are one conditional UPDATE, so of two
// concurrent attaches exactly one succeeds; the other gets
// request.ErrAlreadySet and the stored value is left untouched.
func SetOnce(ctx context.Context, db *gorm.DB, id, guardColumn string, values map[string]interface{}) error {
	res := db.WithContext(ctx).
		Model(&RequestRecord{}).
		Where("id = ?", id).
		Where(clause.Expr{SQL: "? IS NULL", Vars: []interface{}{clause.Column{Name: guardColumn}}}).
		Updates(values)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "SetOnce: %s", guardColumn)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	err := db.WithContext(ctx).Model(&RequestRecord{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "SetOnce: Count")
	}
	if count == 0 {
		return errors.Wrapf(request.ErrNotFound, "request %s", id)
	}
	return errors.Wrapf(request.ErrAlreadySet, "request %s: %s", id, guardColumn)
}

func FetchRequestRecord(ctx context.Context, db *gorm.DB, id string) (*RequestRecord, error) {
	var record RequestRecord
	err := db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(request.ErrNotFound, "request %s", id)
	}
	return &record, err
}

func FetchDecoratorRecord(ctx context.Context, db *gorm.DB, id string) (*DecoratorRecord, error) {
	var record DecoratorRecord
	err := db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(request.ErrNotFound, "decorator %s", id)
	}
	return &record, err
}

// CreateDecoratorRecord stores the decorator unless a row with the same id
// exists. Decorators are immutable once stored.
func CreateDecoratorRecord(ctx context.Context, db *gorm.DB, record *DecoratorRecord) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
}

// UpsertSnapshot replaces the snapshot of the request.
func UpsertSnapshot(ctx context.Context, db *gorm.DB, snapshot *StatusSnapshot) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "reason", "wallet", "block_number", "response", "resolved_at"}),
	}).Create(snapshot).Error
}

func FetchSnapshot(ctx context.Context, db *gorm.DB, requestID string) (*StatusSnapshot, error) {
	var snapshot StatusSnapshot
	err := db.WithContext(ctx).Where("request_id = ?", requestID).First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(request.ErrNotFound, "snapshot of %s", requestID)
	}
	return &snapshot, err
}

// FetchUnresolvedRecords returns the oldest requests without a terminal
// snapshot.
func FetchUnresolvedRecords(ctx context.Context, db *gorm.DB, limit int) ([]RequestRecord, error) {
	var records []RequestRecord
	err := db.WithContext(ctx).
		Model(&RequestRecord{}).
		Joins("LEFT JOIN status_snapshots ON status_snapshots.request_id = request_records.id").
		Where("status_snapshots.status IS NULL OR status_snapshots.status = ?", string(request.StatusPending)).
		Order("request_records.created_at").
		Limit(limit).
		Find(&records).Error
	return records, err
}
