package config

import (
	"os"
	"strconv"
)

// BlobConfig holds blob storage settings.
// Backend selects the implementation: "fs" (local disk, default) or "s3".
type BlobConfig struct {
	Backend string
	Dir     string
}

// MinIOConfig holds object storage settings for the S3-compatible backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// UploadConfig holds upload limits and verification tuning.
type UploadConfig struct {
	// MaxFileSizeBytes is the per-file limit, enforced before and during streaming.
	MaxFileSizeBytes int64
	// MaxFilesPerBatch limits how many files one request may carry.
	MaxFilesPerBatch int
	// VerifyMaxAttempts bounds the stat-and-wait verification loop after a write.
	VerifyMaxAttempts int
	// VerifyRetryDelayMs is the delay between verification attempts.
	VerifyRetryDelayMs int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost      string
	Port         string
	MetadataFile string
	Blob         BlobConfig
	MinIO        MinIOConfig
	Upload       UploadConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:      getEnv("APP_HOST", "localhost:8080"),
		Port:         getEnv("PORT", "8080"),
		MetadataFile: getEnv("METADATA_FILE", "data/metadata.json"),
		Blob: BlobConfig{
			Backend: getEnv("BLOB_BACKEND", "fs"),
			Dir:     getEnv("BLOB_DIR", "data/uploads"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Upload: UploadConfig{
			MaxFileSizeBytes:   getEnvInt64("MAX_FILE_SIZE_BYTES", 100*1024*1024),
			MaxFilesPerBatch:   getEnvInt("MAX_FILES_PER_BATCH", 50),
			VerifyMaxAttempts:  getEnvInt("VERIFY_MAX_ATTEMPTS", 10),
			VerifyRetryDelayMs: getEnvInt("VERIFY_RETRY_DELAY_MS", 100),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}
