package server

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/oleg-smirsky/LaudReader/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventsWSHandler subscribes a client to the event hub. The read loop
// exists only to detect the client going away.
func (h *APIHandler) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade events websocket", logger.ErrorField(err))
		return
	}

	h.hub.register(conn)
	logger.Debug("Events websocket client connected", logger.String("remote", r.RemoteAddr))

	go func() {
		defer h.hub.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// GenerationWSHandler streams chunk completion events for one running
// generation job by watching its work directory. Each finished chunk
// lands there as chunk_<i>.mp3, so file creation is the signal. The
// stream ends when the job finishes or the client disconnects.
func (h *APIHandler) GenerationWSHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	articleID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid article ID", http.StatusBadRequest)
		return
	}

	workDir, active := h.coordinator.JobWorkDir(articleID)
	if !active {
		http.Error(w, "no generation in progress for this article", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade generation websocket", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("Failed to create chunk watcher", logger.ErrorField(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(workDir); err != nil {
		// The job may have finished and cleaned up between the check
		// above and now.
		logger.Debug("Chunk directory gone before watch started",
			logger.Int64("articleID", articleID), logger.ErrorField(err))
		return
	}

	logger.Debug("Watching generation chunks",
		logger.Int64("articleID", articleID),
		logger.String("dir", workDir))

	// Detect client disconnect.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// The watcher only fires for future chunks; poll the job state so
	// the stream terminates once generation completes.
	jobPoll := time.NewTicker(time.Second)
	defer jobPoll.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasPrefix(name, "chunk_") || !strings.HasSuffix(name, ".mp3") {
				continue
			}
			msg := Event{Type: "generation.chunk", Payload: map[string]interface{}{
				"articleId": articleID,
				"chunk":     name,
			}}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Chunk watcher error",
				logger.Int64("articleID", articleID), logger.ErrorField(err))

		case <-jobPoll.C:
			if !h.coordinator.HasActiveJob(articleID) {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				conn.WriteJSON(Event{Type: "generation.finished", Payload: map[string]interface{}{
					"articleId": articleID,
				}})
				return
			}

		case <-clientGone:
			return
		}
	}
}
