package model

import "time"

// PlaybackSession logs one continuous listening stretch for an article:
// from the moment the engine starts playing until it pauses, stops or
// completes. Sessions are append-only history, never read back by the
// playback path itself.
type PlaybackSession struct {
	ID              int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	ArticleID       int64      `json:"articleId" gorm:"index;not null"`
	StartedAt       time.Time  `json:"startedAt" gorm:"not null"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	StartPositionMs int64      `json:"startPositionMs"`
	EndPositionMs   int64      `json:"endPositionMs"`
	Completed       bool       `json:"completed" gorm:"default:false"` // true when the engine reached the end of the article
}

// TableName sets the table name for GORM.
func (PlaybackSession) TableName() string {
	return "playback_sessions"
}
