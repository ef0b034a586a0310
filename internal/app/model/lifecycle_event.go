package model

import "time"

// LifecycleEvent records one completed operation against a video. Events are
// published to JetStream and persisted by a consumer; nothing reads them back
// on the request path.
type LifecycleEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	VideoID   string    `json:"video_id" gorm:"size:36;index"`
	Action    string    `json:"action" gorm:"size:32;not null"`
	Detail    string    `json:"detail" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
}

const (
	ActionUploaded   = "uploaded"
	ActionTrimmed    = "trimmed"
	ActionMerged     = "merged"
	ActionShared     = "shared"
	ActionDownloaded = "downloaded"
)

const (
	LifecycleStreamName     = "VIDEOS"
	LifecycleStreamSubject  = "videos.lifecycle"
	LifecycleConsumerName   = "lifecycle-logger"
	LifecycleStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
