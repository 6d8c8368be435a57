package config

import (
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds everything read from the environment at startup.
type Config struct {
	Port          string
	RedisURL      string
	ServerID      string
	PublicURL     string
	AdminPassword string
	Version       string
}

// Load reads .env (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, reading environment variables")
	}

	cfg := &Config{
		Port:          os.Getenv("PORT"),
		RedisURL:      os.Getenv("REDIS_URL"),
		ServerID:      os.Getenv("SERVER_ID"),
		PublicURL:     os.Getenv("PUBLIC_URL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		Version:       os.Getenv("VERSION"),
	}

	if cfg.Port == "" {
		cfg.Port = "4000"
	}
	if cfg.ServerID == "" {
		// Each instance needs a stable id for the registry; generate one
		// when the deployment doesn't assign it.
		cfg.ServerID = "srv-" + uuid.NewString()[:8]
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:" + cfg.Port
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	return cfg
}
