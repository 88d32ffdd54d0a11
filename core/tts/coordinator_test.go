package tts

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleg-smirsky/LaudReader/model"
)

// fakeArticleRepo is an in-memory ArticleRepository.
type fakeArticleRepo struct {
	mu              sync.Mutex
	articles        map[int64]*model.Article
	progressUpdates []int
	audioReadyCalls int
}

func newFakeArticleRepo(articles ...*model.Article) *fakeArticleRepo {
	repo := &fakeArticleRepo{articles: make(map[int64]*model.Article)}
	for _, a := range articles {
		repo.articles[a.ID] = a
	}
	return repo
}

func (r *fakeArticleRepo) CreateArticle(article *model.Article) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := int64(len(r.articles) + 1)
	article.ID = id
	r.articles[id] = article
	return id, nil
}

func (r *fakeArticleRepo) GetArticleByID(id int64) (*model.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	article, ok := r.articles[id]
	if !ok {
		return nil, nil
	}
	copied := *article
	return &copied, nil
}

func (r *fakeArticleRepo) GetAllArticles() ([]*model.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Article
	for _, a := range r.articles {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeArticleRepo) UpdateArticle(article *model.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *article
	r.articles[article.ID] = &copied
	return nil
}

func (r *fakeArticleRepo) DeleteArticle(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.articles, id)
	return nil
}

func (r *fakeArticleRepo) UpdateStatus(id int64, status model.ArticleStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if article, ok := r.articles[id]; ok {
		article.Status = status
	}
	return nil
}

func (r *fakeArticleRepo) UpdateGenerationProgress(id int64, percent int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progressUpdates = append(r.progressUpdates, percent)
	if article, ok := r.articles[id]; ok {
		article.GenerationProgress = percent
	}
	return nil
}

func (r *fakeArticleRepo) UpdateAudioReady(id int64, path string, sizeBytes, durationMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audioReadyCalls++
	if article, ok := r.articles[id]; ok {
		article.AudioFilePath = path
		article.AudioFileSizeBytes = sizeBytes
		article.DurationMs = durationMs
		article.Status = model.StatusReady
	}
	return nil
}

func (r *fakeArticleRepo) UpdatePlaybackPosition(id int64, positionMs int64, playedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if article, ok := r.articles[id]; ok {
		article.PlaybackPositionMs = positionMs
		t := playedAt
		article.LastPlayedAt = &t
	}
	return nil
}

func (r *fakeArticleRepo) UpdateDuration(id int64, durationMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if article, ok := r.articles[id]; ok {
		article.DurationMs = durationMs
	}
	return nil
}

func (r *fakeArticleRepo) GetFirstWithStatus(status model.ArticleStatus) (*model.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.articles {
		if a.Status == status {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

// gatedSynth blocks every Synthesize call until released.
type gatedSynth struct {
	gate  chan struct{}
	fail  bool
	mu    sync.Mutex
	calls int
}

func (s *gatedSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.gate != nil {
		<-s.gate
	}
	if s.fail {
		return nil, fmt.Errorf("synthesis rejected")
	}
	return []byte("audio:" + text), nil
}

func (s *gatedSynth) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func generatingArticle(id int64, text string) *model.Article {
	return &model.Article{
		ID:            id,
		Title:         "Test Article",
		Domain:        "example.com",
		ExtractedText: text,
		Status:        model.StatusGenerating,
		CreatedAt:     time.Now(),
	}
}

func TestCoordinatorGeneratesAudio(t *testing.T) {
	repo := newFakeArticleRepo(generatingArticle(1, "Hello world. This is a test."))
	synth := &gatedSynth{}
	coord := NewCoordinator(repo, synth, nil, nil, t.TempDir(), 4900)

	coord.StartGeneration(1)
	coord.Wait()

	article, err := repo.GetArticleByID(1)
	require.NoError(t, err)
	require.NotNil(t, article)

	assert.Equal(t, model.StatusReady, article.Status)
	assert.NotEmpty(t, article.AudioFilePath)
	assert.Greater(t, article.AudioFileSizeBytes, int64(0))
	assert.Zero(t, article.DurationMs, "duration is resolved lazily by the player")

	data, err := os.ReadFile(article.AudioFilePath)
	require.NoError(t, err)
	assert.Equal(t, "audio:Hello world. This is a test.", string(data))

	assert.False(t, coord.HasActiveJob(1))
	assert.Zero(t, coord.ActiveJobs())
}

func TestCoordinatorReportsProgressPerChunk(t *testing.T) {
	// Two sentences, tiny chunk limit: two chunks, three progress updates.
	repo := newFakeArticleRepo(generatingArticle(1, "Alpha beta gamma. Delta epsilon zeta."))
	synth := &gatedSynth{}
	coord := NewCoordinator(repo, synth, nil, nil, t.TempDir(), 20)

	coord.StartGeneration(1)
	coord.Wait()

	repo.mu.Lock()
	progress := append([]int(nil), repo.progressUpdates...)
	repo.mu.Unlock()

	assert.Equal(t, []int{0, 50, 100}, progress)
	assert.Equal(t, 2, synth.callCount())
}

func TestCoordinatorSingleFlightPerArticle(t *testing.T) {
	repo := newFakeArticleRepo(generatingArticle(1, "Hello."))
	synth := &gatedSynth{gate: make(chan struct{})}
	coord := NewCoordinator(repo, synth, nil, nil, t.TempDir(), 4900)

	coord.StartGeneration(1)

	// Wait for the job to be admitted and blocked inside synthesis.
	require.Eventually(t, func() bool { return synth.callCount() == 1 },
		time.Second, 10*time.Millisecond)

	coord.StartGeneration(1)
	assert.Equal(t, 1, coord.ActiveJobs(), "duplicate start must not admit a second job")
	assert.True(t, coord.HasActiveJob(1))

	close(synth.gate)
	coord.Wait()

	repo.mu.Lock()
	audioReadyCalls := repo.audioReadyCalls
	repo.mu.Unlock()
	assert.Equal(t, 1, audioReadyCalls)
	assert.Equal(t, 1, synth.callCount())
}

func TestCoordinatorFailureRevertsToGenerating(t *testing.T) {
	repo := newFakeArticleRepo(generatingArticle(1, "Hello world."))
	synth := &gatedSynth{fail: true}
	audioDir := t.TempDir()
	coord := NewCoordinator(repo, synth, nil, nil, audioDir, 4900)

	coord.StartGeneration(1)
	coord.Wait()

	article, err := repo.GetArticleByID(1)
	require.NoError(t, err)
	require.NotNil(t, article)

	assert.Equal(t, model.StatusGenerating, article.Status, "failed article stays retriable")
	assert.Empty(t, article.AudioFilePath)

	_, statErr := os.Stat(coord.OutputPath(1))
	assert.True(t, os.IsNotExist(statErr), "no partial artifact may survive a failure")

	// A later retry is admitted again.
	assert.False(t, coord.HasActiveJob(1))
}

func TestCoordinatorIgnoresMissingArticle(t *testing.T) {
	repo := newFakeArticleRepo()
	coord := NewCoordinator(repo, &gatedSynth{}, nil, nil, t.TempDir(), 4900)

	coord.StartGeneration(42)
	coord.Wait()

	assert.Zero(t, coord.ActiveJobs())
}
