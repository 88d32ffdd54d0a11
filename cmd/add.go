package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oleg-smirsky/LaudReader/config"
	"github.com/oleg-smirsky/LaudReader/core/auth"
	"github.com/oleg-smirsky/LaudReader/core/extractor"
	"github.com/oleg-smirsky/LaudReader/core/tts"
	"github.com/oleg-smirsky/LaudReader/db"
	"github.com/oleg-smirsky/LaudReader/logger"
	"github.com/oleg-smirsky/LaudReader/model"
	"github.com/oleg-smirsky/LaudReader/repository"
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add an article by URL and generate its audio",
	Long:  `Extract the readable text from a web page, save it as an article and synthesize its audio. The command blocks until generation finishes.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := bootstrap()
		defer db.DB.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		extracted, err := extractor.NewExtractor(nil).Extract(ctx, args[0])
		if err != nil {
			return fmt.Errorf("extraction failed: %w", err)
		}

		articleRepo := repository.NewMySQLArticleRepository()
		article := &model.Article{
			Title:         extracted.Title,
			SourceURL:     args[0],
			Domain:        extracted.Domain,
			ExtractedText: extracted.Text,
			Status:        model.StatusGenerating,
			CreatedAt:     time.Now(),
		}
		id, err := articleRepo.CreateArticle(article)
		if err != nil {
			return fmt.Errorf("failed to save article: %w", err)
		}
		fmt.Printf("Added article %d: %s (%s)\n", id, extracted.Title, extracted.Domain)

		coordinator := newCoordinator(cfg, articleRepo)
		coordinator.StartGeneration(id)
		coordinator.Wait()

		saved, err := articleRepo.GetArticleByID(id)
		if err != nil {
			return err
		}
		if saved == nil || saved.Status != model.StatusReady {
			return fmt.Errorf("audio generation failed, retry with: laudreader generate %d", id)
		}
		fmt.Printf("Audio ready: %s (%d bytes)\n", saved.AudioFilePath, saved.AudioFileSizeBytes)
		return nil
	},
}

// bootstrap loads configuration and connects the article store for the
// one-shot CLI commands.
func bootstrap() *config.Config {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutputPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database schema", logger.ErrorField(err))
	}
	return cfg
}

// newCoordinator builds a generation coordinator for CLI use, without
// the websocket notifier or the object-storage mirror.
func newCoordinator(cfg *config.Config, articles repository.ArticleRepository) *tts.Coordinator {
	var creds auth.CredentialProvider
	if provider, err := auth.NewServiceAccountProvider(cfg.CredentialsFile, cfg.TokenEndpoint, nil); err != nil {
		logger.Warn("Service account credentials unavailable", logger.ErrorField(err))
		creds = auth.StaticProvider{}
	} else {
		creds = provider
	}

	return tts.NewCoordinator(articles, tts.NewClient(creds, cfg), nil, nil, cfg.AudioDir, cfg.MaxChunkChars)
}

func init() {
	rootCmd.AddCommand(addCmd)
}
