package model

// PlayerState mirrors the media engine's transient state for the single
// article currently bound to it. ArticleID <= 0 means nothing is loaded.
type PlayerState struct {
	ArticleID  int64  `json:"articleId"`
	Title      string `json:"title"`
	IsPlaying  bool   `json:"isPlaying"`
	PositionMs int64  `json:"positionMs"`
	DurationMs int64  `json:"durationMs"`
}

// Bound reports whether an article is currently loaded into the engine.
func (s PlayerState) Bound() bool {
	return s.ArticleID > 0
}
