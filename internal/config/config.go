package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything cmd/server needs to wire the service.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogMode         string

	// StoreBackend selects the transactional document store:
	// "firestore", "redis" or "memory".
	StoreBackend         string
	FirestoreProjectID   string
	FirestoreCredentials string
	RedisAddr            string

	// CatalogBackend selects the catalog collaborator: "http" or "mysql".
	CatalogBackend string
	CatalogBaseURL string
	MySQLDSN       string
}

// Load reads configuration from the environment, after sourcing a .env
// file when one is present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 5)) * time.Second,
		LogMode:         getEnv("LOG_MODE", "dev"),

		StoreBackend:         getEnv("STORE_BACKEND", "firestore"),
		FirestoreProjectID:   getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCredentials: getEnv("FIRESTORE_CREDENTIALS_FILE", ""),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),

		CatalogBackend: getEnv("CATALOG_BACKEND", "http"),
		CatalogBaseURL: getEnv("CATALOG_BASE_URL", "https://api.escuelajs.co/api/v1"),
		MySQLDSN:       getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/store?parseTime=true"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
