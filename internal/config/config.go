// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Authentication. Tokens are minted by the web frontend and verified
	// here with the shared secret.
	JWTSecret string
	JWTIssuer string

	// EncryptionKey is the 32-byte AES-256-GCM key for archived payloads,
	// derived from JWTSecret when not set explicitly.
	EncryptionKey []byte

	// Model API
	ModelAPIKey     string
	ModelBaseURL    string
	ModelStandard   string // standard-mode model ID
	ModelDeep       string // deep-mode model ID
	MaxOutputTokens int
	Temperature     float64

	// GenerationTimeout bounds one model call end to end. Deep mode with
	// search grounding routinely runs for minutes.
	GenerationTimeout time.Duration

	// RetryBudget is how many times a failed validation re-invokes the
	// model before the request errors out.
	RetryBudget int

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// CORS
	CORSOrigins []string

	// Metadata fetching (link analyses)
	MetadataTimeout   time.Duration
	MetadataUserAgent string

	// Object Storage (S3-compatible) for raw response archives
	StorageEnabled   bool
	StorageEndpoint  string // AWS_ENDPOINT_URL_S3
	StorageAccessKey string // AWS_ACCESS_KEY_ID
	StorageSecretKey string // AWS_SECRET_ACCESS_KEY
	StorageBucket    string
	StorageRegion    string

	// Rate limiting
	RateLimitRequests int           // per window, general API
	RateLimitWindow   time.Duration
	AnalyzeLimit      int // per window, analysis endpoints

	// IdleShutdownTimeout enables scale-to-zero: the server exits after
	// this long without non-probe traffic. Zero disables it.
	IdleShutdownTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:factcheck.db?_journal=WAL&_timeout=5000"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		ModelAPIKey:     getEnv("MODEL_API_KEY", ""),
		ModelBaseURL:    getEnv("MODEL_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ModelStandard:   getEnv("MODEL_STANDARD", "gemini-2.5-flash"),
		ModelDeep:       getEnv("MODEL_DEEP", "gemini-2.5-pro"),
		MaxOutputTokens: getEnvInt("MODEL_MAX_OUTPUT_TOKENS", 16384),
		Temperature:     getEnvFloat("MODEL_TEMPERATURE", 0.2),

		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 10*time.Minute),
		RetryBudget:       getEnvInt("ANALYSIS_RETRY_BUDGET", 1),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		MetadataTimeout:   getEnvDuration("METADATA_TIMEOUT", 10*time.Second),
		MetadataUserAgent: getEnv("METADATA_USER_AGENT", "factcheck-api/1.0"),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		AnalyzeLimit:      getEnvInt("ANALYZE_RATE_LIMIT", 10),

		IdleShutdownTimeout: getEnvDuration("IDLE_SHUTDOWN_TIMEOUT", 0),
	}

	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	if cfg.ModelAPIKey == "" {
		return nil, fmt.Errorf("MODEL_API_KEY is required")
	}
	if cfg.JWTSecret == "" {
		// Local development only; tokens from the frontend will not verify.
		cfg.JWTSecret = generateRandomSecret(64)
	}
	if cfg.RetryBudget < 0 {
		cfg.RetryBudget = 0
	}

	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		cfg.EncryptionKey = deriveEncryptionKey(cfg.JWTSecret)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-me-" + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// deriveEncryptionKey creates a 32-byte AES-256 key from a secret string
// using HKDF with SHA-256. Appropriate for high-entropy secrets like the JWT
// secret; low-entropy passwords would need Argon2 instead.
func deriveEncryptionKey(secret string) []byte {
	salt := []byte("factcheck-api-encryption-key-v1")
	info := []byte("aes-256-gcm-archive")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
