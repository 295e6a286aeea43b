// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (prefix HELPDESK_, runtime override)
//  2. Config file (config.yaml in the working directory or /etc/helpdesk)
//  3. Default values
//
// Main configuration categories:
//   - Models: generation and embedding backend selection and API keys
//   - Storage: PostgreSQL connection
//   - Knowledge: chunking and retrieval parameters
//   - Chat: history window and rate limits
//   - Server: listen address and upload directory
//
// Sensitive fields (API keys, database password) are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates a required backend API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model identifier is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidChunking indicates the chunk size/overlap combination is unusable.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")
)

// Defaults applied when neither the environment nor the config file sets a value.
const (
	// DefaultGenerationModel is the Gemini model used for responses,
	// classification and titles.
	DefaultGenerationModel = "gemini-2.0-flash"

	// DefaultEmbeddingModel is the OpenAI model used for vector embeddings.
	DefaultEmbeddingModel = "text-embedding-3-large"

	// DefaultHistoryWindow is the number of recent turns resurfaced into the
	// prompt. Older turns stay persisted but are not read back.
	DefaultHistoryWindow = 2

	// DefaultChunkSize is the chunk length in runes used during ingestion.
	DefaultChunkSize = 1500

	// DefaultChunkOverlap is the overlap in runes between adjacent chunks.
	DefaultChunkOverlap = 200

	// DefaultTopK is the number of passages retrieved per query.
	DefaultTopK = 5

	// DefaultAddr is the default HTTP listen address.
	DefaultAddr = "127.0.0.1:8080"

	// DefaultUploadDir is where raw uploaded documents are stored.
	DefaultUploadDir = "uploads"
)

// Config stores application configuration.
// Sensitive fields are explicitly masked in MarshalJSON; when adding new
// secrets, update MarshalJSON as well.
type Config struct {
	// Model backends
	GeminiAPIKey    string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	OpenAIAPIKey    string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	GenerationModel string `mapstructure:"generation_model" json:"generation_model"`
	EmbeddingModel  string `mapstructure:"embedding_model" json:"embedding_model"`

	// Storage
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Knowledge store
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK         int `mapstructure:"top_k" json:"top_k"`

	// Chat
	HistoryWindow int     `mapstructure:"history_window" json:"history_window"`
	RateLimit     float64 `mapstructure:"rate_limit" json:"rate_limit"`   // requests per second, 0 = default
	RateBurst     int     `mapstructure:"rate_burst" json:"rate_burst"`   // burst size, 0 = default
	PromptDir     string  `mapstructure:"prompt_dir" json:"prompt_dir"`   // empty = embedded prompts
	UploadDir     string  `mapstructure:"upload_dir" json:"upload_dir"`   // raw document storage
	ServerAddr    string  `mapstructure:"server_addr" json:"server_addr"` // HTTP listen address

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"` // debug, info, warn, error
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load reads configuration from file and environment.
// Missing config file is not an error; defaults and environment apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/helpdesk")

	v.SetEnvPrefix("HELPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("generation_model", DefaultGenerationModel)
	v.SetDefault("embedding_model", DefaultEmbeddingModel)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "helpdesk")
	v.SetDefault("postgres_db_name", "helpdesk")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("top_k", DefaultTopK)

	v.SetDefault("history_window", DefaultHistoryWindow)
	v.SetDefault("upload_dir", DefaultUploadDir)
	v.SetDefault("server_addr", DefaultAddr)

	v.SetDefault("log_level", "info")
}

// PostgresURL returns the connection string in URL form, as consumed by both
// pgxpool and golang-migrate.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   c.PostgresDBName,
	}
	q := url.Values{}
	if c.PostgresSSLMode != "" {
		q.Set("sslmode", c.PostgresSSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// MarshalJSON masks sensitive fields so configs can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.GeminiAPIKey != "" {
		masked.GeminiAPIKey = "***"
	}
	if masked.OpenAIAPIKey != "" {
		masked.OpenAIAPIKey = "***"
	}
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	return json.Marshal(masked)
}
