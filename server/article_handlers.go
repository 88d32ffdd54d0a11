package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/oleg-smirsky/LaudReader/cache"
	"github.com/oleg-smirsky/LaudReader/core/extractor"
	"github.com/oleg-smirsky/LaudReader/core/player"
	"github.com/oleg-smirsky/LaudReader/core/tts"
	"github.com/oleg-smirsky/LaudReader/logger"
	"github.com/oleg-smirsky/LaudReader/model"
	"github.com/oleg-smirsky/LaudReader/repository"
)

// APIHandler holds the dependencies the HTTP handlers need.
type APIHandler struct {
	articles    repository.ArticleRepository
	sessions    repository.SessionRepository
	extractor   *extractor.Extractor
	coordinator *tts.Coordinator
	controller  *player.Controller
	engine      *player.RemoteEngine
	hub         *EventHub
}

func NewAPIHandler(
	articles repository.ArticleRepository,
	sessions repository.SessionRepository,
	ext *extractor.Extractor,
	coordinator *tts.Coordinator,
	controller *player.Controller,
	engine *player.RemoteEngine,
	hub *EventHub,
) *APIHandler {
	return &APIHandler{
		articles:    articles,
		sessions:    sessions,
		extractor:   ext,
		coordinator: coordinator,
		controller:  controller,
		engine:      engine,
		hub:         hub,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Error("Failed to encode response", logger.ErrorField(err))
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func articleIDFromRequest(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// CreateArticleHandler accepts a URL, extracts the readable text and
// starts audio generation. Extraction failure creates nothing.
func (h *APIHandler) CreateArticleHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		respondError(w, http.StatusBadRequest, "request body must be {\"url\": \"...\"}")
		return
	}

	extracted, err := h.extractor.Extract(r.Context(), req.URL)
	if err != nil {
		logger.Warn("Article extraction failed",
			logger.String("url", req.URL), logger.ErrorField(err))
		respondError(w, http.StatusUnprocessableEntity, "failed to extract article: "+err.Error())
		return
	}

	article := &model.Article{
		Title:         extracted.Title,
		SourceURL:     req.URL,
		Domain:        extracted.Domain,
		ExtractedText: extracted.Text,
		Status:        model.StatusGenerating,
		CreatedAt:     time.Now(),
	}

	id, err := h.articles.CreateArticle(article)
	if err != nil {
		logger.Error("Failed to create article", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to save article")
		return
	}
	article.ID = id

	h.coordinator.StartGeneration(id)

	logger.Info("Article added",
		logger.Int64("articleID", id),
		logger.String("title", article.Title),
		logger.String("domain", article.Domain))
	respondJSON(w, http.StatusCreated, article)
}

// GetArticlesHandler lists all articles, newest first.
func (h *APIHandler) GetArticlesHandler(w http.ResponseWriter, r *http.Request) {
	articles, err := h.articles.GetAllArticles()
	if err != nil {
		logger.Error("Failed to list articles", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	respondJSON(w, http.StatusOK, articles)
}

// GetArticleHandler returns one article, with the cached generation
// progress attached while it is still generating.
func (h *APIHandler) GetArticleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := articleIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid article ID")
		return
	}

	article, err := h.articles.GetArticleByID(id)
	if err != nil {
		logger.Error("Failed to load article", logger.Int64("articleID", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to load article")
		return
	}
	if article == nil {
		respondError(w, http.StatusNotFound, "article not found")
		return
	}

	if article.Status == model.StatusGenerating {
		if percent, err := cache.GetGenerationProgress(r.Context(), id); err == nil && percent >= 0 {
			article.GenerationProgress = percent
		}
	}
	respondJSON(w, http.StatusOK, article)
}

// DeleteArticleHandler removes an article and everything attached to
// it. The removed row comes back in the response so the client can
// offer an undo pointing at the restore endpoint.
func (h *APIHandler) DeleteArticleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := articleIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid article ID")
		return
	}

	article, err := h.articles.GetArticleByID(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load article")
		return
	}
	if article == nil {
		respondError(w, http.StatusNotFound, "article not found")
		return
	}

	if err := h.controller.Delete(id); err != nil {
		logger.Error("Failed to delete article", logger.Int64("articleID", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "deleted",
		"article": article,
	})
}

// RestoreArticleHandler undoes the most recent delete. A restored
// article that lost its audio artifact goes straight back into
// generation.
func (h *APIHandler) RestoreArticleHandler(w http.ResponseWriter, r *http.Request) {
	restored, err := h.controller.UndoDelete()
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	if restored.Status == model.StatusGenerating {
		h.coordinator.StartGeneration(restored.ID)
	}

	logger.Info("Article restored",
		logger.Int64("articleID", restored.ID),
		logger.String("title", restored.Title))
	respondJSON(w, http.StatusCreated, restored)
}

// TapHandler applies the single-gesture interaction to an article.
func (h *APIHandler) TapHandler(w http.ResponseWriter, r *http.Request) {
	id, err := articleIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid article ID")
		return
	}

	if err := h.controller.Tap(id); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.controller.State())
}

// MarkPlayedHandler flips an article to PLAYED.
func (h *APIHandler) MarkPlayedHandler(w http.ResponseWriter, r *http.Request) {
	id, err := articleIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid article ID")
		return
	}

	if err := h.controller.MarkPlayed(id); err != nil {
		logger.Error("Failed to mark article played", logger.Int64("articleID", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(model.StatusPlayed)})
}

// MarkUnplayedHandler returns an article to READY at position zero.
func (h *APIHandler) MarkUnplayedHandler(w http.ResponseWriter, r *http.Request) {
	id, err := articleIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid article ID")
		return
	}

	if err := h.controller.MarkUnplayed(id); err != nil {
		logger.Error("Failed to mark article unplayed", logger.Int64("articleID", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(model.StatusReady)})
}

// RegenerateHandler re-triggers generation for an article left in
// GENERATING by an earlier failure. Running jobs are not duplicated.
func (h *APIHandler) RegenerateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := articleIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid article ID")
		return
	}

	article, err := h.articles.GetArticleByID(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load article")
		return
	}
	if article == nil {
		respondError(w, http.StatusNotFound, "article not found")
		return
	}
	if article.Status != model.StatusGenerating {
		respondError(w, http.StatusConflict, "article already has audio")
		return
	}

	h.coordinator.StartGeneration(id)
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"articleId": id,
		"active":    h.coordinator.HasActiveJob(id),
	})
}

// AudioHandler serves the finished audio artifact.
func (h *APIHandler) AudioHandler(w http.ResponseWriter, r *http.Request) {
	id, err := articleIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid article ID")
		return
	}

	article, err := h.articles.GetArticleByID(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load article")
		return
	}
	if article == nil || article.AudioFilePath == "" {
		respondError(w, http.StatusNotFound, "no audio for this article")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, article.AudioFilePath)
}

// SessionsHandler returns the listening history for an article.
func (h *APIHandler) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := articleIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid article ID")
		return
	}

	sessions, err := h.sessions.GetByArticle(r.Context(), id, 50)
	if err != nil {
		logger.Error("Failed to load playback sessions", logger.Int64("articleID", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// MessagesHandler drains the one-shot message queue.
func (h *APIHandler) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": h.hub.DrainMessages()})
}
