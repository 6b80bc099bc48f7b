package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DBPath         string
	ReaperInterval time.Duration
	RoomTTL        time.Duration
}

// Load reads configuration from the environment, with a .env file as an
// optional convenience for local runs.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("EASEL_DB_PATH", "./data/easel.db"),
		ReaperInterval: getDuration("EASEL_REAPER_INTERVAL", time.Hour),
		RoomTTL:        getDuration("EASEL_ROOM_TTL", 24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid duration for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
