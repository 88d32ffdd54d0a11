package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from the environment (optionally via a .env file) with
// simple defaults suitable for local development.
type Config struct {
	HTTPAddr string

	// Audio generation
	AudioDir      string // Directory where finished article MP3s are written
	MaxChunkChars int    // Stay under the TTS API's 5000 char request limit
	TTSEndpoint   string
	TTSVoice      string
	TTSLanguage   string

	// Google service account credentials for the TTS API
	CredentialsFile string
	TokenEndpoint   string

	// Playback position persistence
	TrackerInterval time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Optional object-storage mirror for finished artifacts
	MinioEnabled   bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	LogLevel      string
	LogOutputPath string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	dataBase := getEnv("DATA_DIR", "data")

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		AudioDir:      filepath.Join(dataBase, "audio"),
		MaxChunkChars: getEnvInt("TTS_MAX_CHUNK_CHARS", 4900),
		TTSEndpoint:   getEnv("TTS_ENDPOINT", "https://texttospeech.googleapis.com/v1/text:synthesize"),
		TTSVoice:      getEnv("TTS_VOICE", "en-US-Wavenet-D"),
		TTSLanguage:   getEnv("TTS_LANGUAGE", "en-US"),

		CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "service-account.json"),
		TokenEndpoint:   getEnv("GOOGLE_TOKEN_ENDPOINT", "https://oauth2.googleapis.com/token"),

		TrackerInterval: time.Duration(getEnvInt("TRACKER_INTERVAL_MS", 1000)) * time.Millisecond,

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // No hardcoded default for the password
		DBName:     getEnv("DB_NAME", "laudreader"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEnabled:   getEnvBool("MINIO_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "laudreader"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogOutputPath: getEnv("LOG_OUTPUT_PATH", filepath.Join("logs", "laudreader.log")),
	}
}
