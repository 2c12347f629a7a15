package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Config carries the tunables of the reservation engine. The reserved
// window and sync interval are deployment knobs, not constants in code.
type Config struct {
	Port           string
	ReservedWindow time.Duration // how far ahead a booking marks its table reserved
	SyncInterval   time.Duration // periodic full-sweep cadence
	LockWait       time.Duration // max wait for a per-table lock before failing busy
}

func Load() Config {
	return Config{
		Port:           envString("PORT", "8080"),
		ReservedWindow: time.Duration(envInt("RESERVED_WINDOW_MINUTES", 120)) * time.Minute,
		SyncInterval:   time.Duration(envInt("SYNC_INTERVAL_MINUTES", 5)) * time.Minute,
		LockWait:       time.Duration(envInt("LOCK_WAIT_SECONDS", 5)) * time.Second,
	}
}

// InitDB opens the MySQL connection from DB_* environment variables.
func InitDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		envString("DB_USER", "root"),
		os.Getenv("DB_PASSWORD"),
		envString("DB_HOST", "127.0.0.1"),
		envString("DB_PORT", "3306"),
		envString("DB_NAME", "reservation_app"),
	)

	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
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
