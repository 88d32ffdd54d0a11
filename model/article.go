package model

import "time"

// ArticleStatus is the closed set of lifecycle states an article moves
// through. Status values are stored as-is in the database, so the
// constants double as column values.
type ArticleStatus string

const (
	StatusGenerating ArticleStatus = "GENERATING"
	StatusReady      ArticleStatus = "READY"
	StatusPlaying    ArticleStatus = "PLAYING"
	StatusPlayed     ArticleStatus = "PLAYED"
)

// Playable reports whether an article in this status has a finished
// audio artifact that can be handed to the playback engine.
func (s ArticleStatus) Playable() bool {
	switch s {
	case StatusReady, StatusPlaying, StatusPlayed:
		return true
	}
	return false
}

// Valid reports whether s is one of the known status values.
func (s ArticleStatus) Valid() bool {
	switch s {
	case StatusGenerating, StatusReady, StatusPlaying, StatusPlayed:
		return true
	}
	return false
}

// Article represents a saved web article and its audio rendition.
type Article struct {
	ID                 int64         `json:"id"`
	Title              string        `json:"title"`
	SourceURL          string        `json:"sourceUrl"`
	Domain             string        `json:"domain"`
	ExtractedText      string        `json:"-"` // Full extracted text, not exposed in list API
	AudioFilePath      string        `json:"-"` // Local path to the generated MP3; empty while status is GENERATING
	AudioFileSizeBytes int64         `json:"audioFileSizeBytes"`
	Status             ArticleStatus `json:"status"`
	GenerationProgress int           `json:"generationProgress"` // 0-100, meaningful only while GENERATING
	PlaybackPositionMs int64         `json:"playbackPositionMs"`
	DurationMs         int64         `json:"durationMs"` // 0 until the playback engine resolves it on first load
	CreatedAt          time.Time     `json:"createdAt"`
	LastPlayedAt       *time.Time    `json:"lastPlayedAt,omitempty"`
}
