package model

import (
	"time"
)

// File is a deduplicated record of uploaded audio content. The content hash
// is the identity: re-uploading identical bytes resolves to the same row.
type File struct {
	ID           int64     `json:"id" db:"id"`
	ContentHash  string    `json:"content_hash" db:"content_hash"`
	OriginalName string    `json:"original_name" db:"original_name"`
	Path         string    `json:"path" db:"path"`
	SizeBytes    int64     `json:"size_bytes" db:"size_bytes"`
	Format       string    `json:"format" db:"format"`
	UploadedAt   time.Time `json:"uploaded_at" db:"uploaded_at"`
}
