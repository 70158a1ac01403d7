// Package config reads runtime settings from the environment. Every value
// has a default suitable for local development.
package config

import (
	"log"
	"os"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Settings struct {
	Port         string
	StoreBackend string // memory, postgres or mongo
	DatabaseURL  string
	MongoURL     string
	MongoDB      string

	FuzzyThreshold     float64
	BackdateWindowDays int
}

func Load() Settings {
	return Settings{
		Port:               envOr("PORT", "8080"),
		StoreBackend:       envOr("STORE_BACKEND", "memory"),
		DatabaseURL:        envOr("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=reconciliation port=5432 sslmode=disable"),
		MongoURL:           envOr("MONGO_URL", "mongodb://localhost:27017"),
		MongoDB:            envOr("MONGO_DB", "reconciliation"),
		FuzzyThreshold:     envFloatOr("FUZZY_THRESHOLD", 0.9),
		BackdateWindowDays: envIntOr("BACKDATE_WINDOW_DAYS", 3),
	}
}

// InitDB opens the Postgres connection used by the document store.
func InitDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid %s=%q, using default %v", key, v, fallback)
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("invalid %s=%q, using default %v", key, v, fallback)
	}
	return fallback
}
