package config

import (
	"fmt"
	"os"
	"time"

	"github.com/iammatthias/office-space/pkg/cache"
)

// Config holds the application configuration.
type Config struct {
	Server ServerConfig `json:"server"`
	Cache  CacheConfig  `json:"cache"`
	Sync   SyncConfig   `json:"sync"`
}

// ServerConfig holds dashboard server configuration.
type ServerConfig struct {
	ListenAddr string        `json:"listen_addr"`
	Timeout    time.Duration `json:"timeout"`
}

// CacheConfig holds local series cache configuration.
type CacheConfig struct {
	Path             string `json:"path"`
	CompressionLevel int    `json:"compression_level"`
	Generation       int    `json:"generation"`
}

// SyncConfig holds sync controller configuration.
type SyncConfig struct {
	RemoteDBPath    string        `json:"remote_db_path"`
	PageSize        int           `json:"page_size"`
	RefreshInterval time.Duration `json:"refresh_interval"`
	Throttle        time.Duration `json:"throttle"`
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
			Timeout:    30 * time.Second,
		},
		Cache: CacheConfig{
			Path:             getEnv("CACHE_PATH", "./data"),
			CompressionLevel: getEnvInt("COMPRESSION_LEVEL", 3),
			Generation:       getEnvInt("CACHE_GENERATION", 1),
		},
		Sync: SyncConfig{
			RemoteDBPath:    getEnv("REMOTE_DB_PATH", "./sensor_data.db"),
			PageSize:        getEnvInt("PAGE_SIZE", 500),
			RefreshInterval: getEnvDuration("REFRESH_INTERVAL", time.Minute),
			Throttle:        getEnvDuration("THROTTLE_INTERVAL", time.Second),
		},
	}
}

// ToCacheConfig converts to cache.Config.
func (c *Config) ToCacheConfig() *cache.Config {
	return &cache.Config{
		Path:             c.Cache.Path,
		CompressionLevel: c.Cache.CompressionLevel,
		Generation:       c.Cache.Generation,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}

	if c.Cache.Path == "" {
		return fmt.Errorf("cache path is required")
	}

	if c.Cache.CompressionLevel < 1 || c.Cache.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}

	if c.Cache.Generation < 1 {
		return fmt.Errorf("cache generation must be at least 1")
	}

	if c.Sync.RemoteDBPath == "" {
		return fmt.Errorf("remote database path is required")
	}

	if c.Sync.PageSize < 1 {
		return fmt.Errorf("page size must be at least 1")
	}

	if c.Sync.Throttle < 0 {
		return fmt.Errorf("throttle interval must not be negative")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
