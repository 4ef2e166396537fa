package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP Configuration
	HTTP HTTPConfig

	// Object store holding the backup archives
	Storage StorageConfig

	// Restore script and state file
	Restore RestoreConfig

	// Docker containers created by restorations
	Containers ContainersConfig

	// Archive inventory cache
	Inventory InventoryConfig

	// Logging Configuration
	Logging LoggingConfig
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Address     string
	CORSOrigins []string
}

// StorageConfig holds object store configuration
type StorageConfig struct {
	Bucket string // gs:// URL of the bucket holding iznik-*.xbstream archives
}

// RestoreConfig holds restoration configuration
type RestoreConfig struct {
	ScriptPath        string
	CurrentBackupFile string
	MonotonicProgress bool // Never let a late milestone move progress backward
}

// ContainersConfig holds container naming configuration
type ContainersConfig struct {
	Prefix   string   // Containers are named <prefix><backup id>-<service>
	Services []string // Services stopped on unload
}

// InventoryConfig holds archive cache configuration
type InventoryConfig struct {
	DatabaseURL     string
	RefreshSchedule string // Cron expression, empty disables scheduled refresh
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	monotonic, _ := strconv.ParseBool(os.Getenv("RESTORE_MONOTONIC_PROGRESS"))

	return &Config{
		HTTP: HTTPConfig{
			Address:     getEnv("HTTP_ADDRESS", ":8082"),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			Bucket: strings.TrimSuffix(getEnv("BACKUP_BUCKET", "gs://freegle_backup_uk"), "/"),
		},
		Restore: RestoreConfig{
			ScriptPath:        getEnv("RESTORE_SCRIPT", "/var/www/FreegleDocker/yesterday/scripts/restore-backup.sh"),
			CurrentBackupFile: getEnv("CURRENT_BACKUP_FILE", "/var/www/FreegleDocker/yesterday/data/current-backup.json"),
			MonotonicProgress: monotonic,
		},
		Containers: ContainersConfig{
			Prefix:   getEnv("CONTAINER_PREFIX", "yesterday-"),
			Services: splitList(getEnv("CONTAINER_SERVICES", "db,mailhog")),
		},
		Inventory: InventoryConfig{
			DatabaseURL:     getEnv("DATABASE_URL", "yesterday.sqlite"),
			RefreshSchedule: getEnv("INVENTORY_REFRESH_SCHEDULE", "*/15 * * * *"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var items []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
