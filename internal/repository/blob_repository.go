package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"habit-tracker/internal/model"
)

// BlobRepository stores whole-collection snapshots in the blobs table.
type BlobRepository struct {
	db *gorm.DB
}

func NewBlobRepository(db *gorm.DB) *BlobRepository {
	return &BlobRepository{db: db}
}

// Get returns the value under key. The bool is false when the key is absent.
func (r *BlobRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var blob model.Blob
	err := r.db.WithContext(ctx).Where("blob_key = ?", key).First(&blob).Error
	switch {
	case err == nil:
		return blob.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("get blob %q: %w", key, err)
	}
}

// Set replaces the whole value under key.
func (r *BlobRepository) Set(ctx context.Context, key string, value []byte) error {
	blob := model.Blob{Key: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blob_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&blob).Error
	if err != nil {
		return fmt.Errorf("set blob %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (r *BlobRepository) Remove(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("blob_key = ?", key).Delete(&model.Blob{}).Error; err != nil {
		return fmt.Errorf("remove blob %q: %w", key, err)
	}
	return nil
}
