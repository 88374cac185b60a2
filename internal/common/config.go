package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Queue       QueueConfig     `toml:"queue"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Claude      ClaudeConfig    `toml:"claude"`
	Imagen      ImagenConfig    `toml:"imagen"`
	WordPress   WordPressConfig `toml:"wordpress"`
	Webhook     WebhookConfig   `toml:"webhook"`
	Stats       StatsConfig     `toml:"stats"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type QueueConfig struct {
	PollInterval    string `toml:"poll_interval"`     // e.g., "30s" - how often the dispatcher polls for tasks
	MaxTaskRetries  int    `toml:"max_task_retries"`  // Max claim attempts before an error task is abandoned
	BatchLimit      int    `toml:"batch_limit"`       // Max tasks fetched per poll cycle
	CallbackTimeout string `toml:"callback_timeout"`  // e.g., "30s" - HTTP timeout for callback delivery
	ShutdownTimeout string `toml:"shutdown_timeout"`  // e.g., "10s" - grace period for in-flight work on shutdown
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ClaudeConfig contains Anthropic Claude API configuration for content generation
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`      // Anthropic API key
	Model       string  `toml:"model"`        // Model for content generation
	MaxTokens   int     `toml:"max_tokens"`   // Maximum tokens in response (default: 8192)
	Timeout     string  `toml:"timeout"`      // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`   // Minimum interval between API calls (default: "1s")
	Temperature float32 `toml:"temperature"`  // Completion temperature (default: 0.7)
	MaxAttempts int     `toml:"max_attempts"` // Quality-loop attempts per task (default: 3)
}

// ImagenConfig contains Google Imagen API configuration for featured images
type ImagenConfig struct {
	APIKey  string `toml:"api_key"` // Gemini API key for image generation
	Model   string `toml:"model"`   // Imagen model (default: "imagen-3.0-generate-002")
	Timeout string `toml:"timeout"` // Operation timeout as duration string (default: "2m")
}

// WordPressConfig contains WordPress REST API credentials
type WordPressConfig struct {
	APIURL      string `toml:"api_url"`      // Base REST API URL, e.g. https://site.example/wp-json
	User        string `toml:"user"`         // Application password user
	AppPassword string `toml:"app_password"` // Application password
	Timeout     string `toml:"timeout"`      // HTTP timeout as duration string (default: "60s")
	RateLimit   int    `toml:"rate_limit"`   // Requests per second (default: 5)
}

// WebhookConfig contains inbound webhook authentication
type WebhookConfig struct {
	PluginToken string `toml:"plugin_token"` // Shared secret expected in X-Plugin-Token
}

// StatsConfig contains the periodic queue stats reporter schedule
type StatsConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule (default: every 5 minutes)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in pressgen.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval:    "30s", // Floor of 5s enforced by the dispatcher
			MaxTaskRetries:  3,
			BatchLimit:      1, // One task per cycle keeps API usage predictable
			CallbackTimeout: "30s",
			ShutdownTimeout: "10s",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "5s",
			Temperature: 0.7,
			MaxAttempts: 3,
		},
		Imagen: ImagenConfig{
			APIKey:  "", // User must provide API key (GEMINI_API_KEY or config)
			Model:   "imagen-3.0-generate-002",
			Timeout: "2m",
		},
		WordPress: WordPressConfig{
			Timeout:   "60s",
			RateLimit: 5,
		},
		Stats: StatsConfig{
			Enabled:  true,
			Schedule: "*/5 * * * *",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env -> CLI. Later files override
// earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: PRESSGEN_ENV, fallback: GO_ENV)
	if env := os.Getenv("PRESSGEN_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("PRESSGEN_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("PRESSGEN_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Queue configuration
	if pollInterval := os.Getenv("PRESSGEN_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if maxRetries := os.Getenv("PRESSGEN_QUEUE_MAX_TASK_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Queue.MaxTaskRetries = mr
		}
	}
	if batchLimit := os.Getenv("PRESSGEN_QUEUE_BATCH_LIMIT"); batchLimit != "" {
		if bl, err := strconv.Atoi(batchLimit); err == nil {
			config.Queue.BatchLimit = bl
		}
	}
	if callbackTimeout := os.Getenv("PRESSGEN_QUEUE_CALLBACK_TIMEOUT"); callbackTimeout != "" {
		config.Queue.CallbackTimeout = callbackTimeout
	}

	// Storage configuration
	if badgerPath := os.Getenv("PRESSGEN_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("PRESSGEN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("PRESSGEN_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("PRESSGEN_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // PRESSGEN_ prefix takes priority
	}
	if model := os.Getenv("PRESSGEN_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("PRESSGEN_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("PRESSGEN_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if rateLimit := os.Getenv("PRESSGEN_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}
	if temperature := os.Getenv("PRESSGEN_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}
	if maxAttempts := os.Getenv("PRESSGEN_CLAUDE_MAX_ATTEMPTS"); maxAttempts != "" {
		if ma, err := strconv.Atoi(maxAttempts); err == nil {
			config.Claude.MaxAttempts = ma
		}
	}

	// Imagen configuration
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Imagen.APIKey = apiKey
	}
	if apiKey := os.Getenv("PRESSGEN_IMAGEN_API_KEY"); apiKey != "" {
		config.Imagen.APIKey = apiKey // PRESSGEN_ prefix takes priority
	}
	if model := os.Getenv("PRESSGEN_IMAGEN_MODEL"); model != "" {
		config.Imagen.Model = model
	}

	// WordPress configuration
	if apiURL := os.Getenv("WP_API_URL"); apiURL != "" {
		config.WordPress.APIURL = apiURL
	}
	if user := os.Getenv("WP_API_USER"); user != "" {
		config.WordPress.User = user
	}
	if password := os.Getenv("WP_APP_PASSWORD"); password != "" {
		config.WordPress.AppPassword = password
	}

	// Webhook configuration
	if token := os.Getenv("PLUGIN_CALLBACK_TOKEN"); token != "" {
		config.Webhook.PluginToken = token
	}
	if token := os.Getenv("PRESSGEN_PLUGIN_TOKEN"); token != "" {
		config.Webhook.PluginToken = token // PRESSGEN_ prefix takes priority
	}

	// Stats configuration
	if schedule := os.Getenv("PRESSGEN_STATS_SCHEDULE"); schedule != "" {
		config.Stats.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// Validate checks that the configuration carries everything the worker
// needs to reach its external services.
func (c *Config) Validate() error {
	var missing []string
	if c.Claude.APIKey == "" {
		missing = append(missing, "claude.api_key (or ANTHROPIC_API_KEY)")
	}
	if c.WordPress.APIURL == "" {
		missing = append(missing, "wordpress.api_url (or WP_API_URL)")
	}
	if c.WordPress.User == "" {
		missing = append(missing, "wordpress.user (or WP_API_USER)")
	}
	if c.WordPress.AppPassword == "" {
		missing = append(missing, "wordpress.app_password (or WP_APP_PASSWORD)")
	}
	if c.Webhook.PluginToken == "" {
		missing = append(missing, "webhook.plugin_token (or PLUGIN_CALLBACK_TOKEN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
