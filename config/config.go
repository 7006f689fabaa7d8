package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/socrates-agent/socrates/log"
)

const (
	defaultLLMProvider        = "llamacpp"
	defaultLLMBaseURL         = "http://localhost:8080"
	defaultLLMModel           = "mistral-7b-instruct-v0.2.Q4_K_M"
	defaultLLMTimeout         = "120s"
	defaultEmbeddingsModel    = "all-MiniLM-L6-v2"
	defaultEmbeddingsDim      = 384
	defaultCorpusBackend      = "pgvector"
	defaultCorpusPath         = "socrates-corpus"
	defaultPostgresDSN        = "postgres://postgres@localhost:5432/socrates_vdb"
	defaultWikipediaLanguage  = "es"
	defaultWikipediaSentences = 5
	defaultWikipediaTimeout   = "15s"
	defaultUserAgent          = "socrates-agent/1.0"
	defaultSpeechBaseURL      = "http://localhost:8080/v1"
	defaultSpeechModel        = "bark"
	defaultSpeechVoice        = "v2/es_speaker_0"
	defaultSpeechFormat       = "wav"
	defaultMaxIterations      = 6
	defaultRecursionLimit     = 25
	defaultHistoryLimit       = 24
	defaultCheckpointBackend  = "memory"
	defaultSQLitePath         = "socrates.db"
	defaultRedisAddr          = "localhost:6379"
	defaultRedisTTL           = "24h"
	defaultLogLevel           = "info"
	defaultConfigRelativePath = ".config/socrates/config.toml"
	defaultEnvFile            = ".env"

	envLLMProvider       = "SOCRATES_LLM_PROVIDER"
	envLLMBaseURL        = "SOCRATES_LLM_BASE_URL"
	envLLMModel          = "SOCRATES_LLM_MODEL"
	envLLMAPIKey         = "SOCRATES_LLM_API_KEY"
	envOpenAIAPIKey      = "OPENAI_API_KEY"
	envEmbeddingsBaseURL = "SOCRATES_EMBEDDINGS_BASE_URL"
	envEmbeddingsModel   = "SOCRATES_EMBEDDINGS_MODEL"
	envCorpusBackend     = "SOCRATES_CORPUS_BACKEND"
	envCorpusPath        = "SOCRATES_CORPUS_PATH"
	envDatabaseURL       = "SOCRATES_DATABASE_URL"
	envWikipediaLanguage = "SOCRATES_WIKIPEDIA_LANG"
	envSpeechBaseURL     = "SOCRATES_SPEECH_BASE_URL"
	envSpeechVoice       = "SOCRATES_SPEECH_VOICE"
	envSpeechOutputDir   = "SOCRATES_SPEECH_OUTPUT_DIR"
	envMaxIterations     = "SOCRATES_AGENT_MAX_ITERATIONS"
	envCheckpointBackend = "SOCRATES_CHECKPOINT_BACKEND"
	envRedisAddr         = "SOCRATES_REDIS_ADDR"
	envLogLevel          = "SOCRATES_LOG_LEVEL"
)

// ErrInvalidConfig indicates malformed configuration input.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the application configuration root.
type Config struct {
	LLM        LLMConfig        `toml:"llm"`
	Embeddings EmbeddingsConfig `toml:"embeddings"`
	Corpus     CorpusConfig     `toml:"corpus"`
	Wikipedia  WikipediaConfig  `toml:"wikipedia"`
	Speech     SpeechConfig     `toml:"speech"`
	Agent      AgentConfig      `toml:"agent"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
	Log        LogConfig        `toml:"log"`
}

// LLMConfig configures the chat model server and its sampling.
type LLMConfig struct {
	Provider      string  `toml:"provider"`
	BaseURL       string  `toml:"base_url"`
	Model         string  `toml:"model"`
	APIKey        string  `toml:"api_key"`
	Temperature   float64 `toml:"temperature"`
	TopP          float64 `toml:"top_p"`
	MaxTokens     int     `toml:"max_tokens"`
	RepeatPenalty float64 `toml:"repeat_penalty"`
	Timeout       string  `toml:"timeout"`
}

// EmbeddingsConfig configures the embedding endpoint. An empty BaseURL reuses the LLM server.
type EmbeddingsConfig struct {
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
}

// CorpusConfig selects the vector store holding the philosophical texts.
type CorpusConfig struct {
	Backend     string `toml:"backend"`
	Path        string `toml:"path"`
	Compress    bool   `toml:"compress"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// WikipediaConfig configures the encyclopedia tool.
type WikipediaConfig struct {
	Language  string `toml:"language"`
	Sentences int    `toml:"sentences"`
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
	Timeout   string `toml:"timeout"`
}

// SpeechConfig configures the text-to-speech tool.
type SpeechConfig struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	Voice     string `toml:"voice"`
	Format    string `toml:"format"`
	OutputDir string `toml:"output_dir"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxIterations  int `toml:"max_iterations"`
	RecursionLimit int `toml:"recursion_limit"`
	// HistoryLimit caps the thread messages sent to the model; 0 sends all.
	HistoryLimit int `toml:"history_limit"`
}

// CheckpointConfig selects where conversation threads are persisted.
type CheckpointConfig struct {
	Backend       string `toml:"backend"`
	SQLitePath    string `toml:"sqlite_path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisTTL      string `toml:"redis_ttl"`
	PostgresDSN   string `toml:"postgres_dsn"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadOptions controls config loading behavior.
type LoadOptions struct {
	// Path of the TOML file. Empty means ~/.config/socrates/config.toml.
	Path string
	// EnvFile is loaded into the environment before overrides apply. Empty means ".env".
	EnvFile string
}

// Default returns application defaults.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:      defaultLLMProvider,
			BaseURL:       defaultLLMBaseURL,
			Model:         defaultLLMModel,
			Temperature:   0.4,
			TopP:          0.9,
			MaxTokens:     218,
			RepeatPenalty: 1.1,
			Timeout:       defaultLLMTimeout,
		},
		Embeddings: EmbeddingsConfig{
			Model:      defaultEmbeddingsModel,
			Dimensions: defaultEmbeddingsDim,
		},
		Corpus: CorpusConfig{
			Backend:     defaultCorpusBackend,
			Path:        defaultCorpusPath,
			PostgresDSN: defaultPostgresDSN,
		},
		Wikipedia: WikipediaConfig{
			Language:  defaultWikipediaLanguage,
			Sentences: defaultWikipediaSentences,
			UserAgent: defaultUserAgent,
			Timeout:   defaultWikipediaTimeout,
		},
		Speech: SpeechConfig{
			Enabled:   true,
			BaseURL:   defaultSpeechBaseURL,
			Model:     defaultSpeechModel,
			Voice:     defaultSpeechVoice,
			Format:    defaultSpeechFormat,
			OutputDir: ".",
		},
		Agent: AgentConfig{
			MaxIterations:  defaultMaxIterations,
			RecursionLimit: defaultRecursionLimit,
			HistoryLimit:   defaultHistoryLimit,
		},
		Checkpoint: CheckpointConfig{
			Backend:     defaultCheckpointBackend,
			SQLitePath:  defaultSQLitePath,
			RedisAddr:   defaultRedisAddr,
			RedisTTL:    defaultRedisTTL,
			PostgresDSN: defaultPostgresDSN,
		},
		Log: LogConfig{Level: defaultLogLevel},
	}
}

// Load reads the .env file and the config file, then applies environment overrides.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return Config{}, err
	}

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = defaultConfigPath()
	}
	if err := mergeConfigFile(&cfg, path); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = defaultEnvFile
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func mergeConfigFile(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse config file %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func applyEnv(cfg *Config) error {
	strs := []struct {
		key string
		dst *string
	}{
		{envLLMProvider, &cfg.LLM.Provider},
		{envLLMBaseURL, &cfg.LLM.BaseURL},
		{envLLMModel, &cfg.LLM.Model},
		{envEmbeddingsBaseURL, &cfg.Embeddings.BaseURL},
		{envEmbeddingsModel, &cfg.Embeddings.Model},
		{envCorpusBackend, &cfg.Corpus.Backend},
		{envCorpusPath, &cfg.Corpus.Path},
		{envWikipediaLanguage, &cfg.Wikipedia.Language},
		{envSpeechBaseURL, &cfg.Speech.BaseURL},
		{envSpeechVoice, &cfg.Speech.Voice},
		{envSpeechOutputDir, &cfg.Speech.OutputDir},
		{envCheckpointBackend, &cfg.Checkpoint.Backend},
		{envRedisAddr, &cfg.Checkpoint.RedisAddr},
		{envLogLevel, &cfg.Log.Level},
	}
	for _, s := range strs {
		if value, ok := lookup(s.key); ok {
			*s.dst = value
		}
	}

	if value, ok := lookup(envOpenAIAPIKey); ok {
		cfg.LLM.APIKey = value
		cfg.Speech.APIKey = value
	}
	if value, ok := lookup(envLLMAPIKey); ok {
		cfg.LLM.APIKey = value
	}
	if value, ok := lookup(envDatabaseURL); ok {
		cfg.Corpus.PostgresDSN = value
		cfg.Checkpoint.PostgresDSN = value
	}
	if value, ok := lookup(envMaxIterations); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, envMaxIterations, err)
		}
		cfg.Agent.MaxIterations = parsed
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalidConfig, field, strings.Join(allowed, ", "), value)
}

func validDuration(field, value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, field, err)
	}
	return nil
}

func validate(cfg Config) error {
	checks := []error{
		oneOf("llm.provider", cfg.LLM.Provider, "llamacpp", "openai"),
		oneOf("corpus.backend", cfg.Corpus.Backend, "pgvector", "chromem"),
		oneOf("checkpoint.backend", cfg.Checkpoint.Backend, "memory", "sqlite", "redis", "postgres"),
		validDuration("llm.timeout", cfg.LLM.Timeout),
		validDuration("wikipedia.timeout", cfg.Wikipedia.Timeout),
	}
	if cfg.Checkpoint.Backend == "redis" {
		checks = append(checks, validDuration("checkpoint.redis_ttl", cfg.Checkpoint.RedisTTL))
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	switch {
	case strings.TrimSpace(cfg.LLM.BaseURL) == "":
		return fmt.Errorf("%w: llm.base_url is required", ErrInvalidConfig)
	case cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2:
		return fmt.Errorf("%w: llm.temperature must be within [0, 2]", ErrInvalidConfig)
	case cfg.LLM.TopP <= 0 || cfg.LLM.TopP > 1:
		return fmt.Errorf("%w: llm.top_p must be within (0, 1]", ErrInvalidConfig)
	case cfg.LLM.MaxTokens <= 0:
		return fmt.Errorf("%w: llm.max_tokens must be > 0", ErrInvalidConfig)
	case cfg.Agent.MaxIterations < 1:
		return fmt.Errorf("%w: agent.max_iterations must be >= 1", ErrInvalidConfig)
	case cfg.Agent.HistoryLimit < 0:
		return fmt.Errorf("%w: agent.history_limit must be >= 0", ErrInvalidConfig)
	case cfg.Wikipedia.Sentences < 1 || cfg.Wikipedia.Sentences > 10:
		return fmt.Errorf("%w: wikipedia.sentences must be within [1, 10]", ErrInvalidConfig)
	case cfg.Corpus.Backend == "chromem" && strings.TrimSpace(cfg.Corpus.Path) == "":
		return fmt.Errorf("%w: corpus.path is required for the chromem backend", ErrInvalidConfig)
	}

	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func parseOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// TimeoutDuration returns the parsed request timeout.
func (c LLMConfig) TimeoutDuration() time.Duration {
	return parseOr(c.Timeout, 120*time.Second)
}

// TimeoutDuration returns the parsed request timeout.
func (c WikipediaConfig) TimeoutDuration() time.Duration {
	return parseOr(c.Timeout, 15*time.Second)
}

// RedisTTLDuration returns the parsed TTL; zero disables expiry.
func (c CheckpointConfig) RedisTTLDuration() time.Duration {
	return parseOr(c.RedisTTL, 0)
}

// LogLevel returns the parsed log level.
func (c Config) LogLevel() log.LogLevel {
	level, _ := log.ParseLevel(c.Log.Level)
	return level
}

// EmbeddingsBaseURL returns the embeddings endpoint, defaulting to the LLM server.
func (c Config) EmbeddingsBaseURL() string {
	if strings.TrimSpace(c.Embeddings.BaseURL) != "" {
		return c.Embeddings.BaseURL
	}
	return c.LLM.BaseURL
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultConfigRelativePath)
}
