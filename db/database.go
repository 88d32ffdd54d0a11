package db

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/oleg-smirsky/LaudReader/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
func InitDB() error {
	if err := createArticlesTable(); err != nil {
		return err
	}

	log.Println("Database initialization completed.")
	return nil
}

func createArticlesTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS articles (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(512) NOT NULL,
		source_url VARCHAR(2048) NOT NULL,
		domain VARCHAR(255) NOT NULL,
		extracted_text MEDIUMTEXT NOT NULL,
		audio_file_path VARCHAR(767),
		audio_file_size_bytes BIGINT NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'GENERATING',
		generation_progress INT NOT NULL DEFAULT 0,
		playback_position_ms BIGINT NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_played_at TIMESTAMP NULL DEFAULT NULL,
		INDEX idx_articles_status (status),
		INDEX idx_articles_created_at (created_at)
	);
	`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create articles table: %w", err)
	}
	log.Println("Articles table initialized successfully (or already exists).")
	return nil
}
