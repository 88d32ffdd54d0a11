package repository

import (
	"context"
	"time"

	"github.com/oleg-smirsky/LaudReader/model"

	"gorm.io/gorm"
)

// SessionRepository records listening history.
type SessionRepository interface {
	Create(ctx context.Context, session *model.PlaybackSession) error
	Finish(ctx context.Context, sessionID int64, endPositionMs int64, completed bool) error
	GetByArticle(ctx context.Context, articleID int64, limit int) ([]*model.PlaybackSession, error)
	DeleteByArticle(ctx context.Context, articleID int64) error
}

// gormSessionRepository is the GORM implementation.
type gormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a GORM-backed session repository.
func NewGormSessionRepository(db *gorm.DB) SessionRepository {
	return &gormSessionRepository{db: db}
}

func (r *gormSessionRepository) Create(ctx context.Context, session *model.PlaybackSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *gormSessionRepository) Finish(ctx context.Context, sessionID int64, endPositionMs int64, completed bool) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.PlaybackSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"ended_at":        now,
			"end_position_ms": endPositionMs,
			"completed":       completed,
		}).Error
}

func (r *gormSessionRepository) GetByArticle(ctx context.Context, articleID int64, limit int) ([]*model.PlaybackSession, error) {
	var sessions []*model.PlaybackSession
	err := r.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("started_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *gormSessionRepository) DeleteByArticle(ctx context.Context, articleID int64) error {
	return r.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Delete(&model.PlaybackSession{}).Error
}
