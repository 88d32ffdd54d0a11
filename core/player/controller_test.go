package player

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleg-smirsky/LaudReader/model"
)

// stubEngine is a controllable Engine for tests. Listener callbacks run
// synchronously, which also proves the controller never calls the
// engine while holding its own state lock.
type stubEngine struct {
	mu       sync.Mutex
	listener Listener

	loadedPath string
	startAt    time.Duration
	playing    bool
	position   time.Duration
	duration   time.Duration

	playCalls  int
	pauseCalls int
	stopCalls  int
}

func (e *stubEngine) SetListener(l Listener) { e.listener = l }

func (e *stubEngine) Load(path string, startAt time.Duration) error {
	e.mu.Lock()
	e.loadedPath = path
	e.startAt = startAt
	e.position = startAt
	e.mu.Unlock()
	return nil
}

func (e *stubEngine) Play() {
	e.mu.Lock()
	e.playCalls++
	e.playing = true
	l := e.listener
	e.mu.Unlock()
	if l != nil {
		l.OnIsPlayingChanged(true)
	}
}

func (e *stubEngine) Pause() {
	e.mu.Lock()
	e.pauseCalls++
	e.playing = false
	l := e.listener
	e.mu.Unlock()
	if l != nil {
		l.OnIsPlayingChanged(false)
	}
}

func (e *stubEngine) Stop() {
	e.mu.Lock()
	e.stopCalls++
	e.playing = false
	e.loadedPath = ""
	e.mu.Unlock()
}

func (e *stubEngine) SeekTo(position time.Duration) {
	e.mu.Lock()
	e.position = position
	e.mu.Unlock()
}

func (e *stubEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *stubEngine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *stubEngine) complete() {
	e.mu.Lock()
	e.playing = false
	l := e.listener
	e.mu.Unlock()
	if l != nil {
		l.OnCompleted()
	}
}

// captureSink records states and messages.
type captureSink struct {
	mu       sync.Mutex
	states   []model.PlayerState
	messages []string
}

func (s *captureSink) PlayerState(state model.PlayerState) {
	s.mu.Lock()
	s.states = append(s.states, state)
	s.mu.Unlock()
}

func (s *captureSink) Message(text string) {
	s.mu.Lock()
	s.messages = append(s.messages, text)
	s.mu.Unlock()
}

func (s *captureSink) lastMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

// fakeStore is an in-memory ArticleRepository for controller tests.
type fakeStore struct {
	mu              sync.Mutex
	articles        map[int64]*model.Article
	positionUpdates int
}

func newFakeStore(articles ...*model.Article) *fakeStore {
	store := &fakeStore{articles: make(map[int64]*model.Article)}
	for _, a := range articles {
		store.articles[a.ID] = a
	}
	return store
}

func (s *fakeStore) CreateArticle(article *model.Article) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := int64(len(s.articles) + 1)
	article.ID = id
	s.articles[id] = article
	return id, nil
}

func (s *fakeStore) GetArticleByID(id int64) (*model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[id]
	if !ok {
		return nil, nil
	}
	copied := *article
	return &copied, nil
}

func (s *fakeStore) GetAllArticles() ([]*model.Article, error) { return nil, nil }

func (s *fakeStore) UpdateArticle(article *model.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *article
	s.articles[article.ID] = &copied
	return nil
}

func (s *fakeStore) DeleteArticle(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.articles, id)
	return nil
}

func (s *fakeStore) UpdateStatus(id int64, status model.ArticleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if article, ok := s.articles[id]; ok {
		article.Status = status
	}
	return nil
}

func (s *fakeStore) UpdateGenerationProgress(id int64, percent int) error { return nil }

func (s *fakeStore) UpdateAudioReady(id int64, path string, sizeBytes, durationMs int64) error {
	return nil
}

func (s *fakeStore) UpdatePlaybackPosition(id int64, positionMs int64, playedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positionUpdates++
	if article, ok := s.articles[id]; ok {
		article.PlaybackPositionMs = positionMs
		t := playedAt
		article.LastPlayedAt = &t
	}
	return nil
}

func (s *fakeStore) UpdateDuration(id int64, durationMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if article, ok := s.articles[id]; ok {
		article.DurationMs = durationMs
	}
	return nil
}

func (s *fakeStore) GetFirstWithStatus(status model.ArticleStatus) (*model.Article, error) {
	return nil, nil
}

func (s *fakeStore) positionWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionUpdates
}

func (s *fakeStore) status(t *testing.T, id int64) model.ArticleStatus {
	t.Helper()
	article, err := s.GetArticleByID(id)
	require.NoError(t, err)
	require.NotNil(t, article)
	return article.Status
}

func readyArticle(id int64, path string, positionMs int64) *model.Article {
	return &model.Article{
		ID:                 id,
		Title:              "Ready Article",
		Status:             model.StatusReady,
		AudioFilePath:      path,
		PlaybackPositionMs: positionMs,
	}
}

// newTestController wires a controller with a long tracker interval so
// periodic ticks never fire during a test.
func newTestController(store *fakeStore) (*Controller, *stubEngine, *captureSink) {
	engine := &stubEngine{}
	sink := &captureSink{}
	controller := NewController(engine, store, nil, sink, nil, time.Hour)
	return controller, engine, sink
}

func TestTapStartsPlaybackFromStoredPosition(t *testing.T) {
	store := newFakeStore(readyArticle(1, "/audio/article_1.mp3", 30000))
	controller, engine, _ := newTestController(store)

	require.NoError(t, controller.Tap(1))

	assert.Equal(t, "/audio/article_1.mp3", engine.loadedPath)
	assert.Equal(t, 30*time.Second, engine.startAt)
	assert.Equal(t, 1, engine.playCalls)
	assert.Equal(t, model.StatusPlaying, store.status(t, 1))

	state := controller.State()
	assert.Equal(t, int64(1), state.ArticleID)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, int64(30000), state.PositionMs)
}

func TestTapWhileGeneratingOnlyMessages(t *testing.T) {
	store := newFakeStore(&model.Article{ID: 1, Title: "Pending", Status: model.StatusGenerating})
	controller, engine, sink := newTestController(store)

	require.NoError(t, controller.Tap(1))

	assert.Equal(t, "Still generating audio...", sink.lastMessage())
	assert.Empty(t, engine.loadedPath)
	assert.Zero(t, engine.playCalls)
	assert.Equal(t, model.StatusGenerating, store.status(t, 1))
}

func TestTapSameArticleTogglesPauseAndResume(t *testing.T) {
	store := newFakeStore(readyArticle(1, "/audio/article_1.mp3", 0))
	controller, engine, _ := newTestController(store)

	require.NoError(t, controller.Tap(1))
	require.True(t, controller.State().IsPlaying)

	require.NoError(t, controller.Tap(1))
	assert.Equal(t, 1, engine.pauseCalls)
	assert.False(t, controller.State().IsPlaying)

	require.NoError(t, controller.Tap(1))
	assert.Equal(t, 2, engine.playCalls)
	assert.True(t, controller.State().IsPlaying)
	// Pausing and resuming never reloads the stream.
	assert.Equal(t, time.Duration(0), engine.startAt)
}

func TestTapUnknownArticleFails(t *testing.T) {
	controller, _, _ := newTestController(newFakeStore())
	require.Error(t, controller.Tap(99))
}

func TestPausePersistsPosition(t *testing.T) {
	store := newFakeStore(readyArticle(1, "/audio/article_1.mp3", 0))
	controller, engine, _ := newTestController(store)

	require.NoError(t, controller.Tap(1))
	engine.SeekTo(45 * time.Second)

	require.NoError(t, controller.Tap(1)) // pause

	article, err := store.GetArticleByID(1)
	require.NoError(t, err)
	assert.Equal(t, int64(45000), article.PlaybackPositionMs)
	require.NotNil(t, article.LastPlayedAt)
}

func TestCompletionMarksPlayedAndUnbinds(t *testing.T) {
	store := newFakeStore(readyArticle(1, "/audio/article_1.mp3", 0))
	controller, engine, _ := newTestController(store)

	require.NoError(t, controller.Tap(1))
	engine.SeekTo(3 * time.Minute)
	engine.complete()

	assert.Equal(t, model.StatusPlayed, store.status(t, 1))
	assert.False(t, controller.State().Bound())

	article, err := store.GetArticleByID(1)
	require.NoError(t, err)
	assert.Equal(t, int64(180000), article.PlaybackPositionMs)
}

func TestLazyDurationPersistedOncePlaybackReportsIt(t *testing.T) {
	store := newFakeStore(readyArticle(1, "/audio/article_1.mp3", 0))
	controller, engine, _ := newTestController(store)

	require.NoError(t, controller.Tap(1))
	engine.mu.Lock()
	engine.duration = 5 * time.Minute
	engine.mu.Unlock()

	require.NoError(t, controller.Tap(1)) // pause persists position and duration

	article, err := store.GetArticleByID(1)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), article.DurationMs)
}

func TestMarkUnplayedRewindsToStart(t *testing.T) {
	store := newFakeStore(&model.Article{
		ID:                 1,
		Title:              "Done",
		Status:             model.StatusPlayed,
		AudioFilePath:      "/audio/article_1.mp3",
		PlaybackPositionMs: 123456,
	})
	controller, _, _ := newTestController(store)

	require.NoError(t, controller.MarkUnplayed(1))

	article, err := store.GetArticleByID(1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, article.Status)
	assert.Zero(t, article.PlaybackPositionMs)
	require.NotNil(t, article.LastPlayedAt)
}

func TestMarkPlayedKeepsPosition(t *testing.T) {
	store := newFakeStore(readyArticle(1, "/audio/article_1.mp3", 60000))
	controller, _, _ := newTestController(store)

	require.NoError(t, controller.MarkPlayed(1))

	article, err := store.GetArticleByID(1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPlayed, article.Status)
	assert.Equal(t, int64(60000), article.PlaybackPositionMs)
}

func TestDeleteStopsBoundPlaybackAndRemovesArtifact(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "article_1.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("mp3"), 0644))

	store := newFakeStore(readyArticle(1, audioPath, 0))
	controller, engine, sink := newTestController(store)

	require.NoError(t, controller.Tap(1))
	require.NoError(t, controller.Delete(1))

	assert.Equal(t, 1, engine.stopCalls)
	assert.False(t, controller.State().Bound())
	assert.Equal(t, "Article deleted", sink.lastMessage())

	_, err := os.Stat(audioPath)
	assert.True(t, os.IsNotExist(err))

	article, err := store.GetArticleByID(1)
	require.NoError(t, err)
	assert.Nil(t, article)
}

func TestUndoDeleteRestoresArticleForRegeneration(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "article_1.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("mp3"), 0644))

	store := newFakeStore(&model.Article{
		ID:                 1,
		Title:              "Keep Me",
		SourceURL:          "https://example.com/keep-me",
		Domain:             "example.com",
		ExtractedText:      "The body of the article.",
		Status:             model.StatusPlayed,
		AudioFilePath:      audioPath,
		PlaybackPositionMs: 42000,
		DurationMs:         90000,
	})
	controller, _, sink := newTestController(store)

	require.NoError(t, controller.Delete(1))

	restored, err := controller.UndoDelete()
	require.NoError(t, err)
	assert.Equal(t, "Keep Me", restored.Title)
	assert.Equal(t, "https://example.com/keep-me", restored.SourceURL)
	assert.Equal(t, "The body of the article.", restored.ExtractedText)
	assert.Equal(t, int64(42000), restored.PlaybackPositionMs)
	// The artifact went away with the delete, so the restored article
	// needs a fresh synthesis pass.
	assert.Equal(t, model.StatusGenerating, restored.Status)
	assert.Empty(t, restored.AudioFilePath)
	assert.Zero(t, restored.AudioFileSizeBytes)
	assert.Equal(t, "Article restored", sink.lastMessage())

	saved, err := store.GetArticleByID(restored.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, restored.PlaybackPositionMs, saved.PlaybackPositionMs)
	assert.Equal(t, model.StatusGenerating, saved.Status)
}

func TestUndoDeleteIsOneShot(t *testing.T) {
	store := newFakeStore(readyArticle(1, "/audio/article_1.mp3", 0))
	controller, _, _ := newTestController(store)

	_, err := controller.UndoDelete()
	require.Error(t, err, "nothing to restore before any delete")

	require.NoError(t, controller.Delete(1))

	_, err = controller.UndoDelete()
	require.NoError(t, err)

	_, err = controller.UndoDelete()
	require.Error(t, err, "a snapshot restores at most once")
}

func TestTrackerPersistsPeriodicallyWhilePlaying(t *testing.T) {
	store := newFakeStore(readyArticle(1, "/audio/article_1.mp3", 0))
	engine := &stubEngine{}
	controller := NewController(engine, store, nil, &captureSink{}, nil, 10*time.Millisecond)

	require.NoError(t, controller.Tap(1))
	engine.SeekTo(90 * time.Second)

	require.Eventually(t, func() bool { return store.positionWrites() >= 3 },
		time.Second, 5*time.Millisecond, "tracker should persist once per interval")

	require.NoError(t, controller.Tap(1)) // pause
	time.Sleep(30 * time.Millisecond)     // let any in-flight tick drain

	writes := store.positionWrites()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, writes, store.positionWrites(), "a paused player persists nothing")

	article, err := store.GetArticleByID(1)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), article.PlaybackPositionMs)
}

func TestRapidToggleNeverDoublesTracker(t *testing.T) {
	interval := 20 * time.Millisecond
	store := newFakeStore(readyArticle(1, "/audio/article_1.mp3", 0))
	engine := &stubEngine{}
	controller := NewController(engine, store, nil, &captureSink{}, nil, interval)

	require.NoError(t, controller.Tap(1))
	for i := 0; i < 5; i++ {
		require.NoError(t, controller.Tap(1)) // pause
		require.NoError(t, controller.Tap(1)) // resume
	}

	before := store.positionWrites()
	time.Sleep(10 * interval)
	ticks := store.positionWrites() - before

	// One tracker fires roughly ten times in the window; a leaked
	// second tracker from the toggling above would double that.
	assert.GreaterOrEqual(t, ticks, 5, "tracker must be running after the final resume")
	assert.LessOrEqual(t, ticks, 15, "rapid toggling must not stack trackers")

	require.NoError(t, controller.Tap(1)) // pause before the test ends
}

func TestSeekClampsAtStart(t *testing.T) {
	store := newFakeStore(readyArticle(1, "/audio/article_1.mp3", 5000))
	controller, engine, _ := newTestController(store)

	require.NoError(t, controller.Tap(1))
	controller.SeekBack()

	assert.Equal(t, time.Duration(0), engine.Position())

	controller.SeekForward()
	assert.Equal(t, SeekStep, engine.Position())
}
