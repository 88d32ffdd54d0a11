package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oleg-smirsky/LaudReader/cache"
	"github.com/oleg-smirsky/LaudReader/logger"
	"github.com/oleg-smirsky/LaudReader/model"
)

// Event is one message pushed to connected clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventHub fans generation and player events out to websocket clients
// and keeps a one-shot message queue for clients that poll instead.
// It also mirrors transient state into Redis; cache failures are logged
// and otherwise ignored since the database stays the source of truth.
type EventHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	messages []string
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *EventHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *EventHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcast pushes an event to every connected client, dropping clients
// whose connection has gone away.
func (h *EventHub) broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			logger.Debug("Dropping dead websocket client", logger.ErrorField(err))
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// Message queues a one-shot user message and broadcasts it.
func (h *EventHub) Message(text string) {
	h.mu.Lock()
	h.messages = append(h.messages, text)
	h.mu.Unlock()

	h.broadcast(Event{Type: "message", Payload: map[string]string{"text": text}})
}

// DrainMessages returns queued messages and empties the queue. Each
// message is delivered to at most one poller.
func (h *EventHub) DrainMessages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	drained := h.messages
	h.messages = nil
	if drained == nil {
		drained = []string{}
	}
	return drained
}

// PlayerState implements player.Sink.
func (h *EventHub) PlayerState(state model.PlayerState) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if state.Bound() {
		if err := cache.SetPlayerState(ctx, state); err != nil {
			logger.Debug("Failed to cache player state", logger.ErrorField(err))
		}
	} else {
		if err := cache.ClearPlayerState(ctx); err != nil {
			logger.Debug("Failed to clear cached player state", logger.ErrorField(err))
		}
	}

	h.broadcast(Event{Type: "player.state", Payload: state})
}

// GenerationProgress implements tts.Notifier.
func (h *EventHub) GenerationProgress(articleID int64, title string, percent int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cache.SetGenerationProgress(ctx, articleID, percent); err != nil {
		logger.Debug("Failed to cache generation progress", logger.ErrorField(err))
	}

	h.broadcast(Event{Type: "generation.progress", Payload: map[string]interface{}{
		"articleId": articleID,
		"title":     title,
		"percent":   percent,
	}})
}

// GenerationDone implements tts.Notifier.
func (h *EventHub) GenerationDone(articleID int64, title string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cache.ClearGenerationProgress(ctx, articleID); err != nil {
		logger.Debug("Failed to clear cached generation progress", logger.ErrorField(err))
	}

	h.broadcast(Event{Type: "generation.done", Payload: map[string]interface{}{
		"articleId": articleID,
		"title":     title,
	}})
	h.Message("Audio ready: " + title)
}

// GenerationFailed implements tts.Notifier.
func (h *EventHub) GenerationFailed(articleID int64, title string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if cacheErr := cache.ClearGenerationProgress(ctx, articleID); cacheErr != nil {
		logger.Debug("Failed to clear cached generation progress", logger.ErrorField(cacheErr))
	}

	h.broadcast(Event{Type: "generation.failed", Payload: map[string]interface{}{
		"articleId": articleID,
		"title":     title,
		"error":     err.Error(),
	}})
	h.Message("Audio generation failed: " + title)
}
