package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oleg-smirsky/LaudReader/db"
	"github.com/oleg-smirsky/LaudReader/model"
	"github.com/oleg-smirsky/LaudReader/repository"
)

var generateCmd = &cobra.Command{
	Use:   "generate [article-id]",
	Short: "Retry audio generation for an article",
	Long:  `Re-run audio synthesis for an article whose earlier generation failed. Without an ID the first article still waiting for audio is picked. The command blocks until generation finishes.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := bootstrap()
		defer db.DB.Close()

		articleRepo := repository.NewMySQLArticleRepository()

		var article *model.Article
		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid article ID %q", args[0])
			}
			article, err = articleRepo.GetArticleByID(id)
			if err != nil {
				return err
			}
			if article == nil {
				return fmt.Errorf("article %d not found", id)
			}
		} else {
			var err error
			article, err = articleRepo.GetFirstWithStatus(model.StatusGenerating)
			if err != nil {
				return err
			}
			if article == nil {
				return fmt.Errorf("no articles are waiting for audio")
			}
		}
		id := article.ID
		if article.Status != model.StatusGenerating {
			return fmt.Errorf("article %d already has audio (status %s)", id, article.Status)
		}

		coordinator := newCoordinator(cfg, articleRepo)
		coordinator.StartGeneration(id)
		coordinator.Wait()

		saved, err := articleRepo.GetArticleByID(id)
		if err != nil {
			return err
		}
		if saved == nil || saved.Status != model.StatusReady {
			return fmt.Errorf("audio generation failed for article %d", id)
		}
		fmt.Printf("Audio ready: %s (%d bytes)\n", saved.AudioFilePath, saved.AudioFileSizeBytes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
