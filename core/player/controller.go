package player

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/oleg-smirsky/LaudReader/core/utils"
	"github.com/oleg-smirsky/LaudReader/logger"
	"github.com/oleg-smirsky/LaudReader/model"
	"github.com/oleg-smirsky/LaudReader/repository"
)

// SeekStep is how far the skip controls jump.
const SeekStep = 15 * time.Second

// Sink receives player state changes and one-shot user messages.
type Sink interface {
	PlayerState(state model.PlayerState)
	Message(text string)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) PlayerState(model.PlayerState) {}
func (NopSink) Message(string)                {}

// Mirror removes replicated audio artifacts from object storage.
type Mirror interface {
	RemoveArtifact(ctx context.Context, objectName string) error
}

// Controller binds the playback engine to the article store. It owns
// the player state, persists the playback position once per tracker
// interval while audio is playing, and drives the article lifecycle
// transitions that playback causes.
type Controller struct {
	engine   Engine
	articles repository.ArticleRepository
	sessions repository.SessionRepository
	sink     Sink
	mirror   Mirror
	interval time.Duration

	mu          sync.Mutex
	state       model.PlayerState
	sessionID   int64
	lastDeleted *model.Article

	trackerMu   sync.Mutex
	trackerStop chan struct{}
}

// NewController creates a Controller and registers it as the engine
// listener. sessions, sink and mirror may be nil.
func NewController(engine Engine, articles repository.ArticleRepository, sessions repository.SessionRepository, sink Sink, mirror Mirror, interval time.Duration) *Controller {
	if sink == nil {
		sink = NopSink{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	c := &Controller{
		engine:   engine,
		articles: articles,
		sessions: sessions,
		sink:     sink,
		mirror:   mirror,
		interval: interval,
	}
	engine.SetListener(c)
	return c
}

// State returns a copy of the current player state.
func (c *Controller) State() model.PlayerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tap implements the single-gesture article interaction: pause when the
// tapped article is playing, resume when it is paused, start playback
// from the stored position for playable articles, and surface a message
// while audio is still generating.
func (c *Controller) Tap(articleID int64) error {
	c.mu.Lock()
	sameArticle := c.state.Bound() && c.state.ArticleID == articleID
	playing := c.state.IsPlaying
	c.mu.Unlock()

	if sameArticle {
		if playing {
			c.engine.Pause()
		} else {
			c.engine.Play()
		}
		return nil
	}

	article, err := c.articles.GetArticleByID(articleID)
	if err != nil {
		return fmt.Errorf("failed to load article %d: %w", articleID, err)
	}
	if article == nil {
		return fmt.Errorf("article %d not found", articleID)
	}

	switch {
	case article.Status == model.StatusGenerating:
		c.sink.Message("Still generating audio...")
		return nil
	case article.Status.Playable():
		return c.play(article)
	default:
		return fmt.Errorf("article %d is not playable (status %s)", articleID, article.Status)
	}
}

// play loads the article into the engine at its stored position and
// starts playback.
func (c *Controller) play(article *model.Article) error {
	if article.AudioFilePath == "" {
		return fmt.Errorf("article %d has no audio file", article.ID)
	}

	c.stopTracker()

	startAt := time.Duration(article.PlaybackPositionMs) * time.Millisecond
	if err := c.engine.Load(article.AudioFilePath, startAt); err != nil {
		return fmt.Errorf("failed to load audio for article %d: %w", article.ID, err)
	}

	c.mu.Lock()
	c.state = model.PlayerState{
		ArticleID:  article.ID,
		Title:      article.Title,
		IsPlaying:  false,
		PositionMs: article.PlaybackPositionMs,
		DurationMs: article.DurationMs,
	}
	c.sessionID = 0
	c.mu.Unlock()

	if err := c.articles.UpdateStatus(article.ID, model.StatusPlaying); err != nil {
		logger.Warn("Failed to mark article as playing",
			logger.Int64("articleID", article.ID), logger.ErrorField(err))
	}

	if c.sessions != nil {
		session := &model.PlaybackSession{
			ArticleID:       article.ID,
			StartedAt:       time.Now(),
			StartPositionMs: article.PlaybackPositionMs,
		}
		if err := c.sessions.Create(context.Background(), session); err != nil {
			logger.Warn("Failed to record playback session",
				logger.Int64("articleID", article.ID), logger.ErrorField(err))
		} else {
			c.mu.Lock()
			c.sessionID = session.ID
			c.mu.Unlock()
		}
	}

	c.engine.Play()
	return nil
}

// TogglePlayPause flips the play/pause state of the bound article.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()
	bound := c.state.Bound()
	playing := c.state.IsPlaying
	c.mu.Unlock()

	if !bound {
		return
	}
	if playing {
		c.engine.Pause()
	} else {
		c.engine.Play()
	}
}

// SeekBack jumps back one seek step, clamped at the start.
func (c *Controller) SeekBack() {
	c.seekBy(-SeekStep)
}

// SeekForward jumps forward one seek step.
func (c *Controller) SeekForward() {
	c.seekBy(SeekStep)
}

func (c *Controller) seekBy(delta time.Duration) {
	c.mu.Lock()
	bound := c.state.Bound()
	c.mu.Unlock()
	if !bound {
		return
	}

	target := c.engine.Position() + delta
	if target < 0 {
		target = 0
	}
	c.engine.SeekTo(target)
	c.persistPosition()
}

// MarkPlayed flips an article to PLAYED without touching its position.
func (c *Controller) MarkPlayed(articleID int64) error {
	if err := c.articles.UpdateStatus(articleID, model.StatusPlayed); err != nil {
		return err
	}
	return nil
}

// MarkUnplayed returns a PLAYED article to the queue: status READY and
// position rewound to the start.
func (c *Controller) MarkUnplayed(articleID int64) error {
	if err := c.articles.UpdateStatus(articleID, model.StatusReady); err != nil {
		return err
	}
	if err := c.articles.UpdatePlaybackPosition(articleID, 0, time.Now()); err != nil {
		return err
	}
	return nil
}

// Delete removes an article, its audio artifact, any mirrored copy and
// its listening history. Playback stops first when the article is the
// one currently bound.
func (c *Controller) Delete(articleID int64) error {
	article, err := c.articles.GetArticleByID(articleID)
	if err != nil {
		return fmt.Errorf("failed to load article %d: %w", articleID, err)
	}
	if article == nil {
		return fmt.Errorf("article %d not found", articleID)
	}

	c.mu.Lock()
	bound := c.state.Bound() && c.state.ArticleID == articleID
	c.mu.Unlock()

	if bound {
		c.stopTracker()
		c.engine.Stop()
		c.mu.Lock()
		c.state = model.PlayerState{}
		c.sessionID = 0
		state := c.state
		c.mu.Unlock()
		c.sink.PlayerState(state)
	}

	if article.AudioFilePath != "" {
		if err := utils.RemoveIfExists(article.AudioFilePath); err != nil {
			logger.Warn("Failed to delete audio artifact",
				logger.Int64("articleID", articleID), logger.ErrorField(err))
		}
	}
	if c.mirror != nil {
		objectName := fmt.Sprintf("audio/article_%d.mp3", articleID)
		if err := c.mirror.RemoveArtifact(context.Background(), objectName); err != nil {
			logger.Warn("Failed to remove mirrored audio artifact",
				logger.Int64("articleID", articleID), logger.ErrorField(err))
		}
	}
	if c.sessions != nil {
		if err := c.sessions.DeleteByArticle(context.Background(), articleID); err != nil {
			logger.Warn("Failed to delete playback sessions",
				logger.Int64("articleID", articleID), logger.ErrorField(err))
		}
	}

	if err := c.articles.DeleteArticle(articleID); err != nil {
		return fmt.Errorf("failed to delete article %d: %w", articleID, err)
	}

	// Snapshot for one undo; a newer delete replaces an older snapshot.
	snapshot := *article
	c.mu.Lock()
	c.lastDeleted = &snapshot
	c.mu.Unlock()

	c.sink.Message("Article deleted")
	return nil
}

// UndoDelete re-inserts the most recently deleted article with its
// fields intact. The audio artifact was removed with the delete, so the
// restored article goes back to GENERATING for a fresh synthesis pass
// unless the file is somehow still on disk. One undo per delete.
func (c *Controller) UndoDelete() (*model.Article, error) {
	c.mu.Lock()
	snapshot := c.lastDeleted
	c.lastDeleted = nil
	c.mu.Unlock()

	if snapshot == nil {
		return nil, fmt.Errorf("no recently deleted article to restore")
	}

	restored := *snapshot
	needsAudio := restored.AudioFilePath == ""
	if !needsAudio {
		if _, err := os.Stat(restored.AudioFilePath); err != nil {
			needsAudio = true
		}
	}
	if needsAudio {
		restored.AudioFilePath = ""
		restored.AudioFileSizeBytes = 0
		restored.GenerationProgress = 0
		restored.Status = model.StatusGenerating
	}

	id, err := c.articles.CreateArticle(&restored)
	if err != nil {
		return nil, fmt.Errorf("failed to restore article: %w", err)
	}
	restored.ID = id
	// CreateArticle only writes the insert columns; restore the rest of
	// the row (position, duration, progress, lastPlayedAt) in one pass.
	if err := c.articles.UpdateArticle(&restored); err != nil {
		return nil, fmt.Errorf("failed to restore article fields: %w", err)
	}

	logger.Info("Article restored after delete",
		logger.Int64("articleID", restored.ID),
		logger.String("title", restored.Title))
	c.sink.Message("Article restored")
	return &restored, nil
}

// OnIsPlayingChanged implements Listener. The position tracker runs only
// while audio is actually playing; pausing persists the position once.
func (c *Controller) OnIsPlayingChanged(isPlaying bool) {
	c.mu.Lock()
	if !c.state.Bound() {
		c.mu.Unlock()
		return
	}
	c.state.IsPlaying = isPlaying
	state := c.state
	c.mu.Unlock()

	if isPlaying {
		c.startTracker()
	} else {
		c.stopTracker()
		c.persistPosition()
	}
	c.sink.PlayerState(state)
}

// OnCompleted implements Listener. The finished article is marked
// PLAYED with its final position saved, then the player unbinds.
func (c *Controller) OnCompleted() {
	c.mu.Lock()
	articleID := c.state.ArticleID
	sessionID := c.sessionID
	bound := c.state.Bound()
	c.mu.Unlock()

	if !bound {
		return
	}

	c.stopTracker()
	c.persistPosition()

	if err := c.articles.UpdateStatus(articleID, model.StatusPlayed); err != nil {
		logger.Warn("Failed to mark article as played",
			logger.Int64("articleID", articleID), logger.ErrorField(err))
	}

	if c.sessions != nil && sessionID > 0 {
		endPosition := c.engine.Position().Milliseconds()
		if err := c.sessions.Finish(context.Background(), sessionID, endPosition, true); err != nil {
			logger.Warn("Failed to finish playback session",
				logger.Int64("articleID", articleID), logger.ErrorField(err))
		}
	}

	c.mu.Lock()
	c.state = model.PlayerState{}
	c.sessionID = 0
	state := c.state
	c.mu.Unlock()
	c.sink.PlayerState(state)
}

// startTracker launches the periodic position persister. A previous
// tracker is stopped first so at most one ever runs.
func (c *Controller) startTracker() {
	c.trackerMu.Lock()
	if c.trackerStop != nil {
		close(c.trackerStop)
	}
	stop := make(chan struct{})
	c.trackerStop = stop
	c.trackerMu.Unlock()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.persistPosition()
			case <-stop:
				return
			}
		}
	}()
}

func (c *Controller) stopTracker() {
	c.trackerMu.Lock()
	if c.trackerStop != nil {
		close(c.trackerStop)
		c.trackerStop = nil
	}
	c.trackerMu.Unlock()
}

// persistPosition saves the engine position for the bound article and
// lazily fills in the duration once the engine has resolved it.
func (c *Controller) persistPosition() {
	c.mu.Lock()
	articleID := c.state.ArticleID
	knownDuration := c.state.DurationMs
	bound := c.state.Bound()
	c.mu.Unlock()

	if !bound {
		return
	}

	positionMs := c.engine.Position().Milliseconds()
	durationMs := c.engine.Duration().Milliseconds()

	if err := c.articles.UpdatePlaybackPosition(articleID, positionMs, time.Now()); err != nil {
		logger.Warn("Failed to persist playback position",
			logger.Int64("articleID", articleID), logger.ErrorField(err))
	}

	if durationMs > 0 && knownDuration == 0 {
		if err := c.articles.UpdateDuration(articleID, durationMs); err != nil {
			logger.Warn("Failed to persist audio duration",
				logger.Int64("articleID", articleID), logger.ErrorField(err))
		}
	}

	c.mu.Lock()
	if c.state.ArticleID == articleID {
		c.state.PositionMs = positionMs
		if durationMs > 0 {
			c.state.DurationMs = durationMs
		}
	}
	state := c.state
	c.mu.Unlock()
	c.sink.PlayerState(state)
}
