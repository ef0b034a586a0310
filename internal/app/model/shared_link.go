package model

import "time"

// SharedLink is a time-limited download capability for a video. Rows are
// immutable once written; expiry is judged at redemption time and expired
// rows stay in the table.
type SharedLink struct {
	ID        string    `json:"link_id" gorm:"primaryKey;size:36"`
	VideoID   string    `json:"video_id" gorm:"size:36;not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}

// Expired reports whether the link is past its expiry at the given instant.
func (l *SharedLink) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
