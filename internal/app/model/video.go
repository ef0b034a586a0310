package model

import "time"

// Video describes one stored media file. Filename is storage-relative and
// always names a file currently present in the upload directory; it is
// rewritten in place when a trim replaces the underlying file.
type Video struct {
	ID       string `json:"video_id" gorm:"primaryKey;size:36"`
	Filename string `json:"filename" gorm:"size:255;not null"`
	// OriginalName is the filename the client uploaded under, kept only as
	// the suggested name on download. Storage never uses it.
	OriginalName string    `json:"original_name" gorm:"size:255"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null"`
}
