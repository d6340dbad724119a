package model

import "time"

// Blob is one whole-collection snapshot in the key-value medium.
type Blob struct {
	Key       string `gorm:"column:blob_key;primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}

// TableName keeps the table name stable regardless of gorm's pluralizer.
func (Blob) TableName() string {
	return "blobs"
}
