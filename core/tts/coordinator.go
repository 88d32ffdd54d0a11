package tts

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/oleg-smirsky/LaudReader/core/utils"
	"github.com/oleg-smirsky/LaudReader/logger"
	"github.com/oleg-smirsky/LaudReader/model"
	"github.com/oleg-smirsky/LaudReader/repository"
)

// Notifier receives generation lifecycle events. Implementations must
// not block; they are called from the generation goroutine.
type Notifier interface {
	GenerationProgress(articleID int64, title string, percent int)
	GenerationDone(articleID int64, title string)
	GenerationFailed(articleID int64, title string, err error)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) GenerationProgress(int64, string, int) {}
func (NopNotifier) GenerationDone(int64, string)          {}
func (NopNotifier) GenerationFailed(int64, string, error) {}

// Mirror replicates finished audio artifacts to object storage.
type Mirror interface {
	UploadArtifact(ctx context.Context, localPath, objectName string) error
}

// job tracks one in-flight generation.
type job struct {
	workDir string
}

// Coordinator runs audio generation jobs, at most one per article.
// Admission is a single map insertion under the mutex, so concurrent
// starts for the same article collapse into one job and the duplicate
// caller returns immediately.
type Coordinator struct {
	mu   sync.Mutex
	jobs map[int64]*job
	wg   sync.WaitGroup

	articles      repository.ArticleRepository
	synth         Synthesizer
	notifier      Notifier
	mirror        Mirror
	audioDir      string
	maxChunkChars int
}

// NewCoordinator creates a Coordinator. notifier and mirror may be nil.
func NewCoordinator(articles repository.ArticleRepository, synth Synthesizer, notifier Notifier, mirror Mirror, audioDir string, maxChunkChars int) *Coordinator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Coordinator{
		jobs:          make(map[int64]*job),
		articles:      articles,
		synth:         synth,
		notifier:      notifier,
		mirror:        mirror,
		audioDir:      audioDir,
		maxChunkChars: maxChunkChars,
	}
}

// OutputPath returns the audio artifact path for an article.
func (c *Coordinator) OutputPath(articleID int64) string {
	return filepath.Join(c.audioDir, fmt.Sprintf("article_%d.mp3", articleID))
}

// ObjectName returns the object-storage key for an article's artifact.
func ObjectName(articleID int64) string {
	return fmt.Sprintf("audio/article_%d.mp3", articleID)
}

// StartGeneration launches generation for the article in a background
// goroutine. A second call while the job is still running is a no-op.
func (c *Coordinator) StartGeneration(articleID int64) {
	workDir := filepath.Join(c.audioDir, fmt.Sprintf("job_%d_%s", articleID, uuid.NewString()[:8]))

	c.mu.Lock()
	if _, active := c.jobs[articleID]; active {
		c.mu.Unlock()
		logger.Debug("Generation already in flight, ignoring start",
			logger.Int64("articleID", articleID))
		return
	}
	c.jobs[articleID] = &job{workDir: workDir}
	c.mu.Unlock()

	// Created before the goroutine runs so event watchers can attach
	// to the chunk directory immediately.
	if err := utils.EnsureDirExists(workDir); err != nil {
		logger.Error("Failed to create generation work directory",
			logger.Int64("articleID", articleID), logger.ErrorField(err))
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.release(articleID)
		c.generate(context.Background(), articleID, workDir)
	}()
}

// HasActiveJob reports whether a generation is running for the article.
func (c *Coordinator) HasActiveJob(articleID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, active := c.jobs[articleID]
	return active
}

// ActiveJobs returns the number of running generations.
func (c *Coordinator) ActiveJobs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// JobWorkDir returns the chunk directory of a running job, if any.
func (c *Coordinator) JobWorkDir(articleID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if j, active := c.jobs[articleID]; active {
		return j.workDir, true
	}
	return "", false
}

// Wait blocks until all running generations have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) release(articleID int64) {
	c.mu.Lock()
	delete(c.jobs, articleID)
	c.mu.Unlock()
}

func (c *Coordinator) generate(ctx context.Context, articleID int64, workDir string) {
	article, err := c.articles.GetArticleByID(articleID)
	if err != nil {
		logger.Error("Failed to load article for generation",
			logger.Int64("articleID", articleID), logger.ErrorField(err))
		return
	}
	if article == nil {
		logger.Warn("Generation requested for missing article",
			logger.Int64("articleID", articleID))
		return
	}

	if err := utils.EnsureDirExists(c.audioDir); err != nil {
		c.fail(article, err)
		return
	}

	outputPath := c.OutputPath(articleID)
	chunks := SplitIntoChunks(article.ExtractedText, c.maxChunkChars)
	logger.Info("Starting audio generation",
		logger.Int64("articleID", articleID),
		logger.String("title", article.Title),
		logger.Int("chunks", len(chunks)))

	onProgress := func(current, total int) {
		percent := ProgressPercent(current, total)
		if err := c.articles.UpdateGenerationProgress(articleID, percent); err != nil {
			logger.Warn("Failed to persist generation progress",
				logger.Int64("articleID", articleID), logger.ErrorField(err))
		}
		c.notifier.GenerationProgress(articleID, article.Title, percent)
	}

	if err := Assemble(ctx, chunks, c.synth.Synthesize, onProgress, workDir, outputPath); err != nil {
		// Assemble already removed any partial output; remove again in
		// case the failure happened after the file was created.
		if rmErr := utils.RemoveIfExists(outputPath); rmErr != nil {
			logger.Warn("Failed to remove partial audio artifact", logger.ErrorField(rmErr))
		}
		c.fail(article, err)
		return
	}

	size, err := utils.FileSize(outputPath)
	if err != nil {
		c.fail(article, err)
		return
	}

	// Duration stays zero here; the player resolves and persists it on
	// first load.
	if err := c.articles.UpdateAudioReady(articleID, outputPath, size, 0); err != nil {
		logger.Error("Failed to mark audio ready",
			logger.Int64("articleID", articleID), logger.ErrorField(err))
		c.fail(article, err)
		return
	}

	if c.mirror != nil {
		if err := c.mirror.UploadArtifact(ctx, outputPath, ObjectName(articleID)); err != nil {
			logger.Warn("Failed to mirror audio artifact to object storage",
				logger.Int64("articleID", articleID), logger.ErrorField(err))
		}
	}

	logger.Info("Audio generation finished",
		logger.Int64("articleID", articleID),
		logger.Int64("sizeBytes", size))
	c.notifier.GenerationDone(articleID, article.Title)
}

// fail reverts the article to GENERATING so the job can be retried.
func (c *Coordinator) fail(article *model.Article, cause error) {
	logger.Error("Audio generation failed",
		logger.Int64("articleID", article.ID),
		logger.String("title", article.Title),
		logger.ErrorField(cause))

	if err := c.articles.UpdateStatus(article.ID, model.StatusGenerating); err != nil {
		logger.Error("Failed to reset article status after generation failure",
			logger.Int64("articleID", article.ID), logger.ErrorField(err))
	}
	c.notifier.GenerationFailed(article.ID, article.Title, cause)
}
