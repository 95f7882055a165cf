package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Persistence and storage
	DBPath      string
	StorageDir  string
	ArtifactDir string

	// HTTP API
	ListenAddr string

	// Inference
	Engine           string // "whispercpp" or "openai"
	WhisperBinary    string
	WhisperModelDir  string
	OpenAIAPIKey     string
	DefaultModelSize string

	// Orchestration
	QueueSize int

	// Optional upload archive (MinIO)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Optional selector tuning file (YAML)
	TuningPath string

	Development bool
}

// LoadEnv loads environment variables from a .env file if one exists.
// Missing files are not an error; system-wide environment still applies.
func LoadEnv() error {
	envPaths := []string{
		".env",
		".env.local",
		"../.env",
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return fmt.Errorf("error loading %s file: %w", envPath, err)
			}
			break
		}
	}

	return nil
}

// Load reads configuration from the environment with defaults and validates
// it. Fails fast on configuration that cannot work.
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{
		DBPath:           getEnvOrDefault("WFLOW_DB_PATH", "data/whisperflow.db"),
		StorageDir:       getEnvOrDefault("WFLOW_STORAGE_DIR", "data/uploads"),
		ArtifactDir:      getEnvOrDefault("WFLOW_ARTIFACT_DIR", "data/artifacts"),
		ListenAddr:       getEnvOrDefault("WFLOW_LISTEN_ADDR", ":8090"),
		Engine:           getEnvOrDefault("WFLOW_ENGINE", "whispercpp"),
		WhisperBinary:    os.Getenv("WFLOW_WHISPER_BINARY"),
		WhisperModelDir:  getEnvOrDefault("WFLOW_WHISPER_MODEL_DIR", "models"),
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		DefaultModelSize: getEnvOrDefault("WFLOW_MODEL_SIZE", "large-v3"),
		QueueSize:        getEnvIntOrDefault("WFLOW_QUEUE_SIZE", 64),
		MinioEndpoint:    os.Getenv("WFLOW_MINIO_ENDPOINT"),
		MinioAccessKey:   os.Getenv("WFLOW_MINIO_ACCESS_KEY"),
		MinioSecretKey:   os.Getenv("WFLOW_MINIO_SECRET_KEY"),
		MinioBucket:      getEnvOrDefault("WFLOW_MINIO_BUCKET", "whisperflow-uploads"),
		MinioUseSSL:      getEnvBoolOrDefault("WFLOW_MINIO_USE_SSL", false),
		TuningPath:       os.Getenv("WFLOW_TUNING_FILE"),
		Development:      getEnvBoolOrDefault("WFLOW_DEV", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Engine {
	case "whispercpp":
		if c.WhisperBinary == "" {
			return fmt.Errorf("WFLOW_WHISPER_BINARY must be set when WFLOW_ENGINE=whispercpp")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set when WFLOW_ENGINE=openai")
		}
		if !strings.HasPrefix(c.OpenAIAPIKey, "sk-") {
			return fmt.Errorf("invalid OPENAI_API_KEY format: must start with 'sk-'")
		}
	default:
		return fmt.Errorf("unknown WFLOW_ENGINE %q (expected whispercpp or openai)", c.Engine)
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("WFLOW_QUEUE_SIZE must be at least 1, got %d", c.QueueSize)
	}

	return nil
}

// ArchiveEnabled reports whether the MinIO upload archive is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

// GetProjectRoot finds the project root directory by looking for go.mod.
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find project root (go.mod not found)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
