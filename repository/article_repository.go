package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oleg-smirsky/LaudReader/db"
	"github.com/oleg-smirsky/LaudReader/model"
)

// ArticleRepository defines the interface for article data operations.
// The store owns all persisted article rows; status, progress and
// position mutations go through the dedicated single-column updates so
// callers never read-modify-write a row across separate calls.
type ArticleRepository interface {
	CreateArticle(article *model.Article) (int64, error)
	GetArticleByID(id int64) (*model.Article, error)
	GetAllArticles() ([]*model.Article, error)
	UpdateArticle(article *model.Article) error
	DeleteArticle(id int64) error
	UpdateStatus(id int64, status model.ArticleStatus) error
	UpdateGenerationProgress(id int64, percent int) error
	UpdateAudioReady(id int64, path string, sizeBytes, durationMs int64) error
	UpdatePlaybackPosition(id int64, positionMs int64, playedAt time.Time) error
	UpdateDuration(id int64, durationMs int64) error
	GetFirstWithStatus(status model.ArticleStatus) (*model.Article, error)
}

// mysqlArticleRepository implements ArticleRepository for MySQL.
type mysqlArticleRepository struct {
	DB *sql.DB
}

// NewMySQLArticleRepository creates a new instance of mysqlArticleRepository.
func NewMySQLArticleRepository() ArticleRepository {
	return &mysqlArticleRepository{DB: db.DB}
}

const articleColumns = `id, title, source_url, domain, extracted_text, audio_file_path,
	audio_file_size_bytes, status, generation_progress, playback_position_ms,
	duration_ms, created_at, last_played_at`

// scanArticle scans one row into an Article, mapping NULL columns onto
// the empty-string / nil-pointer representation the model uses.
func scanArticle(row interface{ Scan(...interface{}) error }) (*model.Article, error) {
	article := &model.Article{}
	var audioPath sql.NullString
	var lastPlayedAt sql.NullTime

	err := row.Scan(
		&article.ID, &article.Title, &article.SourceURL, &article.Domain,
		&article.ExtractedText, &audioPath, &article.AudioFileSizeBytes,
		&article.Status, &article.GenerationProgress, &article.PlaybackPositionMs,
		&article.DurationMs, &article.CreatedAt, &lastPlayedAt,
	)
	if err != nil {
		return nil, err
	}

	if audioPath.Valid {
		article.AudioFilePath = audioPath.String
	}
	if lastPlayedAt.Valid {
		t := lastPlayedAt.Time
		article.LastPlayedAt = &t
	}
	return article, nil
}

// CreateArticle adds a new article to the database. New articles always
// start in GENERATING with no audio path.
func (r *mysqlArticleRepository) CreateArticle(article *model.Article) (int64, error) {
	query := `INSERT INTO articles (title, source_url, domain, extracted_text, status, created_at)
	           VALUES (?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateArticle: %w", err)
	}
	defer stmt.Close()

	status := article.Status
	if !status.Valid() {
		status = model.StatusGenerating
	}
	createdAt := article.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := stmt.Exec(article.Title, article.SourceURL, article.Domain, article.ExtractedText, string(status), createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateArticle: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateArticle: %w", err)
	}
	return id, nil
}

// GetArticleByID retrieves an article by its ID.
func (r *mysqlArticleRepository) GetArticleByID(id int64) (*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ?`
	row := r.DB.QueryRow(query, id)

	article, err := scanArticle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Article not found
		}
		return nil, fmt.Errorf("failed to scan article by ID %d: %w", id, err)
	}
	return article, nil
}

// GetAllArticles retrieves all articles, newest first.
func (r *mysqlArticleRepository) GetAllArticles() ([]*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles ORDER BY created_at DESC`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]*model.Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article in GetAllArticles: %w", err)
		}
		articles = append(articles, article)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in GetAllArticles: %w", err)
	}

	return articles, nil
}

// UpdateArticle rewrites all mutable columns of an article. Used for
// whole-row restores (undo of a delete); targeted updates below are
// preferred everywhere else.
func (r *mysqlArticleRepository) UpdateArticle(article *model.Article) error {
	query := `UPDATE articles SET title = ?, source_url = ?, domain = ?, extracted_text = ?,
	           audio_file_path = ?, audio_file_size_bytes = ?, status = ?, generation_progress = ?,
	           playback_position_ms = ?, duration_ms = ?, last_played_at = ? WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdateArticle: %w", err)
	}
	defer stmt.Close()

	var audioPath interface{}
	if article.AudioFilePath != "" {
		audioPath = article.AudioFilePath
	}
	var lastPlayedAt interface{}
	if article.LastPlayedAt != nil {
		lastPlayedAt = *article.LastPlayedAt
	}

	_, err = stmt.Exec(article.Title, article.SourceURL, article.Domain, article.ExtractedText,
		audioPath, article.AudioFileSizeBytes, string(article.Status), article.GenerationProgress,
		article.PlaybackPositionMs, article.DurationMs, lastPlayedAt, article.ID)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateArticle for ID %d: %w", article.ID, err)
	}
	return nil
}

// DeleteArticle removes an article row.
func (r *mysqlArticleRepository) DeleteArticle(id int64) error {
	query := `DELETE FROM articles WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for DeleteArticle: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(id); err != nil {
		return fmt.Errorf("failed to execute DeleteArticle for ID %d: %w", id, err)
	}
	return nil
}

// UpdateStatus sets the lifecycle status for an article.
func (r *mysqlArticleRepository) UpdateStatus(id int64, status model.ArticleStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid article status %q", status)
	}

	query := `UPDATE articles SET status = ? WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdateStatus: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(string(status), id); err != nil {
		return fmt.Errorf("failed to execute UpdateStatus for ID %d: %w", id, err)
	}
	return nil
}

// UpdateGenerationProgress sets the generation progress percent.
func (r *mysqlArticleRepository) UpdateGenerationProgress(id int64, percent int) error {
	query := `UPDATE articles SET generation_progress = ? WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdateGenerationProgress: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(percent, id); err != nil {
		return fmt.Errorf("failed to execute UpdateGenerationProgress for ID %d: %w", id, err)
	}
	return nil
}

// UpdateAudioReady records the finished artifact and flips the article
// to READY in a single statement, so a reader can never observe a READY
// article without its audio path.
func (r *mysqlArticleRepository) UpdateAudioReady(id int64, path string, sizeBytes, durationMs int64) error {
	query := `UPDATE articles SET audio_file_path = ?, audio_file_size_bytes = ?, duration_ms = ?, status = ? WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdateAudioReady: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(path, sizeBytes, durationMs, string(model.StatusReady), id); err != nil {
		return fmt.Errorf("failed to execute UpdateAudioReady for ID %d: %w", id, err)
	}
	return nil
}

// UpdatePlaybackPosition persists the playback position and last-played
// timestamp.
func (r *mysqlArticleRepository) UpdatePlaybackPosition(id int64, positionMs int64, playedAt time.Time) error {
	query := `UPDATE articles SET playback_position_ms = ?, last_played_at = ? WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdatePlaybackPosition: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(positionMs, playedAt, id); err != nil {
		return fmt.Errorf("failed to execute UpdatePlaybackPosition for ID %d: %w", id, err)
	}
	return nil
}

// UpdateDuration sets duration_ms once the playback engine has resolved it.
func (r *mysqlArticleRepository) UpdateDuration(id int64, durationMs int64) error {
	query := `UPDATE articles SET duration_ms = ? WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdateDuration: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(durationMs, id); err != nil {
		return fmt.Errorf("failed to execute UpdateDuration for ID %d: %w", id, err)
	}
	return nil
}

// GetFirstWithStatus retrieves one article with the given status, if any.
func (r *mysqlArticleRepository) GetFirstWithStatus(status model.ArticleStatus) (*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE status = ? LIMIT 1`
	row := r.DB.QueryRow(query, string(status))

	article, err := scanArticle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan article by status %s: %w", status, err)
	}
	return article, nil
}
