package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/oleg-smirsky/LaudReader/cache"
	"github.com/oleg-smirsky/LaudReader/config"
	"github.com/oleg-smirsky/LaudReader/core/auth"
	"github.com/oleg-smirsky/LaudReader/core/extractor"
	"github.com/oleg-smirsky/LaudReader/core/player"
	"github.com/oleg-smirsky/LaudReader/core/tts"
	"github.com/oleg-smirsky/LaudReader/core/utils"
	"github.com/oleg-smirsky/LaudReader/db"
	"github.com/oleg-smirsky/LaudReader/logger"
	"github.com/oleg-smirsky/LaudReader/model"
	"github.com/oleg-smirsky/LaudReader/repository"
	"github.com/oleg-smirsky/LaudReader/storage"
)

// Start initializes every backend and runs the HTTP server until an
// interrupt arrives.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutputPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database schema", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()
	if err := db.AutoMigrateModels(&model.PlaybackSession{}); err != nil {
		logger.Fatal("Failed to migrate session schema", logger.ErrorField(err))
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		// Redis only mirrors transient state; the service degrades
		// gracefully without it.
		logger.Warn("Redis unavailable, transient state mirrors disabled", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
	}

	if err := utils.EnsureDirExists(cfg.AudioDir); err != nil {
		logger.Fatal("Failed to create audio directory", logger.ErrorField(err))
	}

	var mirrorStore *storage.MinioStore
	if cfg.MinioEnabled {
		store, err := storage.InitMinio(cfg)
		if err != nil {
			logger.Fatal("Failed to initialize MinIO", logger.ErrorField(err))
		}
		mirrorStore = store
	}

	var creds auth.CredentialProvider
	if provider, err := auth.NewServiceAccountProvider(cfg.CredentialsFile, cfg.TokenEndpoint, nil); err != nil {
		// Without credentials every generation fails fast and the
		// article stays retriable.
		logger.Warn("Service account credentials unavailable, audio generation disabled",
			logger.ErrorField(err))
		creds = auth.StaticProvider{}
	} else {
		creds = provider
	}

	articleRepo := repository.NewMySQLArticleRepository()
	sessionRepo := repository.NewGormSessionRepository(db.GormDB)

	hub := NewEventHub()
	ttsClient := tts.NewClient(creds, cfg)

	var ttsMirror tts.Mirror
	var playerMirror player.Mirror
	if mirrorStore != nil {
		ttsMirror = mirrorStore
		playerMirror = mirrorStore
	}

	coordinator := tts.NewCoordinator(articleRepo, ttsClient, hub, ttsMirror, cfg.AudioDir, cfg.MaxChunkChars)
	engine := player.NewRemoteEngine()
	controller := player.NewController(engine, articleRepo, sessionRepo, hub, playerMirror, cfg.TrackerInterval)

	apiHandler := NewAPIHandler(articleRepo, sessionRepo, extractor.NewExtractor(nil), coordinator, controller, engine, hub)

	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Article endpoints
	router.HandleFunc("/api/articles", apiHandler.CreateArticleHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/articles", apiHandler.GetArticlesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/articles/restore", apiHandler.RestoreArticleHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/articles/{id}", apiHandler.GetArticleHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/articles/{id}", apiHandler.DeleteArticleHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/articles/{id}/tap", apiHandler.TapHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/articles/{id}/played", apiHandler.MarkPlayedHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/articles/{id}/unplayed", apiHandler.MarkUnplayedHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/articles/{id}/generate", apiHandler.RegenerateHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/articles/{id}/audio", apiHandler.AudioHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/articles/{id}/sessions", apiHandler.SessionsHandler).Methods(http.MethodGet)

	// Player endpoints
	router.HandleFunc("/api/player", apiHandler.GetPlayerHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/player/toggle", apiHandler.ToggleHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/player/seek", apiHandler.SeekHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/player/report", apiHandler.ReportHandler).Methods(http.MethodPost)

	// One-shot messages for polling clients
	router.HandleFunc("/api/messages", apiHandler.MessagesHandler).Methods(http.MethodGet)

	// Websocket endpoints
	router.HandleFunc("/ws/events", apiHandler.EventsWSHandler)
	router.HandleFunc("/ws/generation/{id}", apiHandler.GenerationWSHandler)

	// Mirrored artifacts straight from object storage
	if mirrorStore != nil {
		router.PathPrefix("/mirror/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			objectPath := strings.TrimPrefix(r.URL.Path, "/mirror/")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			object, err := mirrorStore.Object(ctx, objectPath)
			if err != nil {
				http.Error(w, "File not found", http.StatusNotFound)
				return
			}
			defer object.Close()

			w.Header().Set("Content-Type", "audio/mpeg")
			w.Header().Set("Cache-Control", "public, max-age=31536000")
			if _, err := io.Copy(w, object); err != nil {
				logger.Warn("Error serving mirrored artifact", logger.ErrorField(err))
			}
		})
	}

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	// Let running generations finish so no article is left with a
	// partial artifact on disk.
	coordinator.Wait()
	logger.Info("Server stopped")
}
