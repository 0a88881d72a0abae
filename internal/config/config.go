package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	ServerPort  string
	Environment string
	CORSOrigin  string

	// Session lifetimes: SessionExpiry for plain logins,
	// RememberExpiry when the client asks to stay signed in.
	SessionExpiry  time.Duration
	RememberExpiry time.Duration

	// Upload pipeline
	UploadDir      string
	MaxUploadBytes int64
	JournalPath    string

	// Blob storage backend: "local" (default) or "minio"
	StorageBackend string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Rate limiting
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	RateLimitBlockTime   time.Duration
}

func Load() *Config {
	// Try to load .env file, but don't fail if it doesn't exist
	// (containers use environment variables directly)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	journalPath := os.Getenv("JOURNAL_PATH")
	if journalPath == "" {
		journalPath = "data/upload_journal"
	}

	storageBackend := os.Getenv("STORAGE_BACKEND")
	if storageBackend == "" {
		storageBackend = "local"
	}

	corsOrigin := os.Getenv("CORS_ORIGIN")
	if corsOrigin == "" {
		corsOrigin = "http://localhost:3000"
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		ServerPort:  os.Getenv("SERVER_PORT"),
		Environment: os.Getenv("ENVIRONMENT"),
		CORSOrigin:  corsOrigin,

		SessionExpiry:  getEnvAsDuration("SESSION_EXPIRY", "12h"),
		RememberExpiry: getEnvAsDuration("REMEMBER_EXPIRY", "168h"),

		UploadDir:      uploadDir,
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 25)) * 1024 * 1024,
		JournalPath:    journalPath,

		StorageBackend: storageBackend,
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    os.Getenv("MINIO_BUCKET"),
		MinioUseSSL:    os.Getenv("MINIO_USE_SSL") == "true",

		RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
		RateLimitBlockTime:   getEnvAsDuration("RATE_LIMIT_BLOCK_TIME", "5m"),
	}

	return cfg
}

// getEnvAsInt retrieves environment variable as int with default value
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %d", key, defaultVal)
		return defaultVal
	}
	return val
}

// getEnvAsDuration retrieves environment variable as duration with default value
func getEnvAsDuration(key string, defaultVal string) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		valStr = defaultVal
	}
	duration, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %s", key, defaultVal)
		duration, _ = time.ParseDuration(defaultVal)
	}
	return duration
}
