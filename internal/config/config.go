package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Security  SecurityConfig  `mapstructure:"security"`
	Reframing ReframingConfig `mapstructure:"reframing"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// SQLiteConfig configures the embedded local store
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig selects the session and summary backends.
// Backend is "postgres" or "sqlite"; SummaryBackend may additionally be "mongo".
type StorageConfig struct {
	Backend        string `mapstructure:"backend"`
	SummaryBackend string `mapstructure:"summary_backend"`
	CacheSessions  bool   `mapstructure:"cache_sessions"`
}

type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	// AdminEmails may call operator endpoints such as the cache flush
	AdminEmails []string `mapstructure:"admin_emails"`
}

type LLMConfig struct {
	DefaultProvider string          `mapstructure:"default_provider"`
	DefaultModel    string          `mapstructure:"default_model"`
	OpenAI          OpenAIConfig    `mapstructure:"openai"`
	Anthropic       AnthropicConfig `mapstructure:"anthropic"`
	Ollama          OllamaConfig    `mapstructure:"ollama"`
	DeepSeek        DeepSeekConfig  `mapstructure:"deepseek"`
	Gemini          GeminiConfig    `mapstructure:"gemini"`
	Vertex          VertexConfig    `mapstructure:"vertex"`
	Mock            MockConfig      `mapstructure:"mock"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Host         string `mapstructure:"host"`
	DefaultModel string `mapstructure:"default_model"`
}

type DeepSeekConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type VertexConfig struct {
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`
	Model    string `mapstructure:"model"`
}

type MockConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type SecurityConfig struct {
	MaxInputLength int             `mapstructure:"max_input_length"`
	EncryptionKey  string          `mapstructure:"encryption_key"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// ReframingConfig carries the dialogue constants and the user-facing templates.
// Empty template strings fall back to the built-in wording.
type ReframingConfig struct {
	MaxTurns            int           `mapstructure:"max_turns"`
	PacingIntervalTurns int           `mapstructure:"pacing_interval_turns"`
	ModelTimeout        time.Duration `mapstructure:"model_timeout"`
	MaxReframeLength    int           `mapstructure:"max_reframe_length"`
	Persona             string        `mapstructure:"persona"`
	CrisisMessage       string        `mapstructure:"crisis_message"`
	RepromptMessage     string        `mapstructure:"reprompt_message"`
	FallbackMessage     string        `mapstructure:"fallback_message"`
	PacingPrompt        string        `mapstructure:"pacing_prompt"`
	Affirmation         string        `mapstructure:"affirmation"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level"`
	Format       string        `mapstructure:"format"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// SetConfigFile reports a missing file as an fs error, not ConfigFileNotFoundError
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.middleware_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "reframe")
	v.SetDefault("database.database", "reframe")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)

	// Storage
	v.SetDefault("storage.backend", "postgres")
	v.SetDefault("storage.summary_backend", "postgres")
	v.SetDefault("storage.cache_sessions", true)
	v.SetDefault("sqlite.path", "./data/reframe.db")

	// Mongo
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "reframe")
	v.SetDefault("mongo.collection", "session_history")
	v.SetDefault("mongo.timeout", "10s")

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.session_ttl", "30m")

	// Auth
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h") // 7 days

	// LLM
	v.SetDefault("llm.default_provider", "gemini")
	v.SetDefault("llm.ollama.host", "http://localhost:11434")
	v.SetDefault("llm.ollama.default_model", "llama3.1")
	v.SetDefault("llm.gemini.model", "gemini-2.5-flash")
	v.SetDefault("llm.vertex.location", "us-central1")
	v.SetDefault("llm.vertex.model", "gemini-2.5-flash")

	// Security
	v.SetDefault("security.max_input_length", 2000)
	v.SetDefault("security.rate_limit.requests_per_minute", 30)
	v.SetDefault("security.rate_limit.burst", 5)

	// Reframing
	v.SetDefault("reframing.max_turns", 12)
	v.SetDefault("reframing.pacing_interval_turns", 3)
	v.SetDefault("reframing.model_timeout", "30s")
	v.SetDefault("reframing.max_reframe_length", 500)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h")
	v.SetDefault("logging.rotation_time", "24h")
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")

	// Database
	v.BindEnv("database.host", "POSTGRES_HOST")
	v.BindEnv("database.user", "POSTGRES_USER")
	v.BindEnv("database.password", "POSTGRES_PASSWORD")
	v.BindEnv("database.database", "POSTGRES_DB")

	// Storage
	v.BindEnv("storage.backend", "STORAGE_BACKEND")
	v.BindEnv("storage.summary_backend", "SUMMARY_BACKEND")
	v.BindEnv("sqlite.path", "SQLITE_PATH")
	v.BindEnv("mongo.uri", "MONGO_URI")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.admin_emails", "ADMIN_EMAILS")

	// Security
	v.BindEnv("security.encryption_key", "ENCRYPTION_KEY")

	// LLM
	v.BindEnv("llm.default_provider", "LLM_DEFAULT_PROVIDER")
	v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.deepseek.api_key", "DEEPSEEK_API_KEY")
	v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.vertex.project", "GOOGLE_CLOUD_PROJECT")
	v.BindEnv("llm.vertex.location", "GOOGLE_CLOUD_LOCATION")
	v.BindEnv("llm.ollama.host", "OLLAMA_HOST")
	v.BindEnv("llm.mock.enabled", "LLM_MOCK_ENABLED")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.file", "LOG_FILE")
}
