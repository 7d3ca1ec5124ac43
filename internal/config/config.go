package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN         string
	ServerPort    string
	SessionSecret string

	// bootstrap admin account, created on first start if no admin exists
	AdminUsername string
	AdminPassword string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBDSN:         os.Getenv("PFMT_DB_DSN"),
		ServerPort:    os.Getenv("PFMT_PORT"),
		SessionSecret: os.Getenv("PFMT_SESSION_SECRET"),
		AdminUsername: os.Getenv("PFMT_ADMIN_USERNAME"),
		AdminPassword: os.Getenv("PFMT_ADMIN_PASSWORD"),
	}

	if cfg.DBDSN == "" {
		log.Fatal("PFMT_DB_DSN is not set")
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.SessionSecret == "" {
		log.Fatal("PFMT_SESSION_SECRET is not set")
	}
	if cfg.AdminUsername == "" {
		cfg.AdminUsername = "admin@pfmt.local"
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "Admin123!"
	}

	return cfg
}
