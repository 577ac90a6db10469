package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `validate:"required"`
	JWTSecret   string `validate:"required"`
	MongoURI    string `validate:"required"`
	DBName      string `validate:"required"`
	SkipAuth    bool
	Environment string `validate:"oneof=development staging production test"`
	AppId       string
	LogLevel    string `validate:"oneof=debug info warn error"`

	StoragePath string `validate:"required"` // Physical root directory of file assets
	StorageURL  string `validate:"required"` // URL path prefix for public access
	BackupPath  string `validate:"required"` // Root for move backups and reference snapshots

	Assets AssetPolicy

	// Cron expression for the dry-run integrity sweep. Empty disables it.
	IntegritySweepSchedule string

	DispatchWorkers int `validate:"min=1,max=64"`
	DispatchBuffer  int `validate:"min=1"`
}

// AssetPolicy holds the thresholds used by bulk file operations.
type AssetPolicy struct {
	MaxTargets                  int           `validate:"min=1"`
	BulkConfirmThreshold        int           `validate:"min=0"`
	DangerousReferenceThreshold int           `validate:"min=0"`
	BatchSize                   int           `validate:"min=1,max=500"`
	MaxBatchSize                int           `validate:"min=1,gtefield=BatchSize"`
	MaxProcessingTime           time.Duration `validate:"min=0"`
	MaxRenameAttempts           int           `validate:"min=1"`
	UnusedGracePeriod           time.Duration `validate:"min=0"`
	ScanCacheSize               int           `validate:"min=1"`
}

var validate = validator.New()

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "go-lms"),
		SkipAuth:    getEnvBool("SKIP_AUTH", false),
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "go-lms"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		StoragePath: getEnv("STORAGE_PATH", "./uploads"),
		StorageURL:  getEnv("STORAGE_URL", "/uploads"),
		BackupPath:  getEnv("BACKUP_PATH", "./backups"),
		Assets: AssetPolicy{
			MaxTargets:                  getEnvInt("ASSET_MAX_TARGETS", 1000),
			BulkConfirmThreshold:        getEnvInt("ASSET_BULK_CONFIRM_THRESHOLD", 10),
			DangerousReferenceThreshold: getEnvInt("ASSET_DANGEROUS_REFERENCE_THRESHOLD", 5),
			BatchSize:                   getEnvInt("ASSET_BATCH_SIZE", 20),
			MaxBatchSize:                getEnvInt("ASSET_MAX_BATCH_SIZE", 100),
			MaxProcessingTime:           getEnvDuration("ASSET_MAX_PROCESSING_TIME", 5*time.Minute),
			MaxRenameAttempts:           getEnvInt("ASSET_MAX_RENAME_ATTEMPTS", 100),
			UnusedGracePeriod:           getEnvDuration("ASSET_UNUSED_GRACE_PERIOD", 24*time.Hour),
			ScanCacheSize:               getEnvInt("ASSET_SCAN_CACHE_SIZE", 1024),
		},
		IntegritySweepSchedule: getEnv("INTEGRITY_SWEEP_SCHEDULE", ""),
		DispatchWorkers:        getEnvInt("DISPATCH_WORKERS", 2),
		DispatchBuffer:         getEnvInt("DISPATCH_BUFFER", 1000),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultAssetPolicy returns the thresholds used when nothing is configured.
func DefaultAssetPolicy() AssetPolicy {
	return AssetPolicy{
		MaxTargets:                  1000,
		BulkConfirmThreshold:        10,
		DangerousReferenceThreshold: 5,
		BatchSize:                   20,
		MaxBatchSize:                100,
		MaxProcessingTime:           5 * time.Minute,
		MaxRenameAttempts:           100,
		UnusedGracePeriod:           24 * time.Hour,
		ScanCacheSize:               1024,
	}
}

// Validate runs struct tag validation over the loaded configuration.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return err
	}
	if cfg.StoragePath == cfg.BackupPath {
		return fmt.Errorf("BackupPath must differ from StoragePath")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s (%q), using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s (%q), using %s", key, value, fallback)
		return fallback
	}
	return d
}
