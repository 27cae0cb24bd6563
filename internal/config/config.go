package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreSQLite    = "sqlite"
	StoreSurrealDB = "surrealdb"
)

// Model providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// Store selection
	Store      string `yaml:"store"`
	SQLitePath string `yaml:"sqlite_path"`

	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Model providers
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	EmbedProvider   string `yaml:"embed_provider"`
	EmbedModel      string `yaml:"embed_model"`
	EmbedDimension  int    `yaml:"embed_dimension"`
	OllamaHost      string `yaml:"ollama_host"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`

	// Arousal scoring space
	ArousalSpaceURL       string        `yaml:"arousal_space_url"`
	ArousalMaxWorkers     int           `yaml:"arousal_max_workers"`
	ArousalRequestTimeout time.Duration `yaml:"arousal_request_timeout"`
	ArousalStreamTimeout  time.Duration `yaml:"arousal_stream_timeout"`

	// Lab defaults
	RandomSampleSize int           `yaml:"random_slice_sample_size"`
	RandomTopK       int           `yaml:"random_slice_top_k"`
	DirectedTopK     int           `yaml:"directed_top_k"`
	RandomPrompt     string        `yaml:"random_slice_prompt"`
	JobStaleAfter    time.Duration `yaml:"job_stale_after"`

	// Project used when a request names none. ProjectFromCWD falls back to
	// the git origin or working directory name.
	DefaultProject string `yaml:"default_project"`
	ProjectFromCWD bool   `yaml:"project_from_cwd"`

	// Queue
	RedisAddr string `yaml:"redis_addr"`
	QueueKey  string `yaml:"queue_key"`

	// Chunking
	ChunkSizeWords    int `yaml:"chunk_size_words"`
	ChunkOverlapWords int `yaml:"chunk_overlap_words"`
	ChunkMax          int `yaml:"chunk_max"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Store:      StoreSQLite,
		SQLitePath: "litlab.db",

		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "litlab",
		SurrealDBDatabase:  "lab",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		LLMProvider:    ProviderOllama,
		LLMModel:       "llama3.2",
		EmbedProvider:  ProviderOllama,
		EmbedModel:     "all-minilm:l6-v2",
		EmbedDimension: 384,
		OllamaHost:     "http://localhost:11434",

		ArousalMaxWorkers:     12,
		ArousalRequestTimeout: 30 * time.Second,
		ArousalStreamTimeout:  60 * time.Second,

		RandomSampleSize: 30,
		RandomTopK:       8,
		DirectedTopK:     6,
		RandomPrompt:     "Find the most emotionally charged idea in these passages and build a lesson around it.",
		JobStaleAfter:    15 * time.Minute,

		QueueKey: "litlab:lab_jobs",

		ChunkSizeWords:    220,
		ChunkOverlapWords: 60,
		ChunkMax:          256,

		LogFile:  "/tmp/litlab.log",
		LogLevel: slog.LevelInfo,
	}
}

// Load reads configuration from environment variables. When LITLAB_CONFIG
// names a YAML file, its values replace the defaults first; environment
// variables always win.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("LITLAB_CONFIG"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.Store = strings.ToLower(getEnv("LITLAB_STORE", cfg.Store))
	cfg.SQLitePath = getEnv("LITLAB_SQLITE_PATH", cfg.SQLitePath)

	cfg.SurrealDBURL = getEnv("SURREALDB_URL", cfg.SurrealDBURL)
	cfg.SurrealDBNamespace = getEnv("SURREALDB_NAMESPACE", cfg.SurrealDBNamespace)
	cfg.SurrealDBDatabase = getEnv("SURREALDB_DATABASE", cfg.SurrealDBDatabase)
	cfg.SurrealDBUser = getEnv("SURREALDB_USER", cfg.SurrealDBUser)
	cfg.SurrealDBPass = getEnv("SURREALDB_PASS", cfg.SurrealDBPass)
	cfg.SurrealDBAuthLevel = getEnv("SURREALDB_AUTH_LEVEL", cfg.SurrealDBAuthLevel)

	cfg.LLMProvider = strings.ToLower(getEnv("LITLAB_LLM_PROVIDER", cfg.LLMProvider))
	cfg.LLMModel = getEnv("LITLAB_LLM_MODEL", cfg.LLMModel)
	cfg.EmbedProvider = strings.ToLower(getEnv("LITLAB_EMBED_PROVIDER", cfg.EmbedProvider))
	cfg.EmbedModel = getEnv("LITLAB_EMBED_MODEL", cfg.EmbedModel)
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)

	cfg.ArousalSpaceURL = getEnv("AROUSAL_SPACE_URL", cfg.ArousalSpaceURL)
	cfg.RandomPrompt = getEnv("RANDOM_SLICE_PROMPT", cfg.RandomPrompt)
	cfg.DefaultProject = getEnv("LITLAB_PROJECT", cfg.DefaultProject)
	if v := os.Getenv("LITLAB_PROJECT_FROM_CWD"); v != "" {
		cfg.ProjectFromCWD = v == "true" || v == "1"
	}
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.QueueKey = getEnv("LITLAB_QUEUE_KEY", cfg.QueueKey)
	cfg.LogFile = getEnv("LITLAB_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = parseLogLevel(getEnv("LITLAB_LOG_LEVEL", cfg.LogLevel.String()))

	ints := []struct {
		key string
		dst *int
	}{
		{"LITLAB_EMBED_DIMENSION", &cfg.EmbedDimension},
		{"AROUSAL_MAX_WORKERS", &cfg.ArousalMaxWorkers},
		{"RANDOM_SLICE_SAMPLE_SIZE", &cfg.RandomSampleSize},
		{"RANDOM_SLICE_TOP_K", &cfg.RandomTopK},
		{"DIRECTED_TOP_K", &cfg.DirectedTopK},
		{"CHUNK_SIZE_WORDS", &cfg.ChunkSizeWords},
		{"CHUNK_OVERLAP_WORDS", &cfg.ChunkOverlapWords},
		{"CHUNK_MAX", &cfg.ChunkMax},
	}
	for _, f := range ints {
		v, err := getEnvInt(f.key, *f.dst)
		if err != nil {
			return Config{}, err
		}
		*f.dst = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"AROUSAL_REQUEST_TIMEOUT", &cfg.ArousalRequestTimeout},
		{"AROUSAL_STREAM_TIMEOUT", &cfg.ArousalStreamTimeout},
		{"LITLAB_JOB_STALE_AFTER", &cfg.JobStaleAfter},
	}
	for _, f := range durations {
		v, err := getEnvDuration(f.key, *f.dst)
		if err != nil {
			return Config{}, err
		}
		*f.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a job.
func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreSurrealDB:
	default:
		return fmt.Errorf("unsupported store %q (want %s or %s)", c.Store, StoreSQLite, StoreSurrealDB)
	}
	if c.RandomTopK <= 0 || c.RandomSampleSize < c.RandomTopK {
		return fmt.Errorf("random slice sample size %d must be at least top k %d (> 0)", c.RandomSampleSize, c.RandomTopK)
	}
	if c.DirectedTopK <= 0 {
		return fmt.Errorf("directed top k must be positive, got %d", c.DirectedTopK)
	}
	if c.ArousalMaxWorkers <= 0 {
		return fmt.Errorf("arousal max workers must be positive, got %d", c.ArousalMaxWorkers)
	}
	if c.EmbedDimension < 0 {
		return fmt.Errorf("embed dimension must not be negative, got %d", c.EmbedDimension)
	}
	return nil
}

// overlayFile decodes a YAML file on top of cfg. Durations use Go syntax
// ("30s", "15m").
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file struct {
		Config   `yaml:",inline"`
		LogLevel string `yaml:"log_level"`
	}
	file.Config = *cfg
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	*cfg = file.Config
	if file.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(file.LogLevel)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
