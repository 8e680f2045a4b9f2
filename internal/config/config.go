package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"meal-journal/internal/assistant"
	"meal-journal/internal/datafoundation"
	"meal-journal/internal/logging"
	"meal-journal/internal/storage"
)

// Environment variables
const (
	ENV_CONFIG_FILE_PATH = "CONFIG_FILE_PATH"

	// Variables to override "secrets" in the config file
	ENV_DATASET_API_TOKEN   = "DATASET_API_TOKEN"
	ENV_DATASET_API_URL     = "DATASET_API_URL"
	ENV_DATASET_TOKEN       = "DATASET_TOKEN"
	ENV_ASSISTANT_API_KEY   = "ASSISTANT_API_KEY"
	ENV_ASSISTANT_PROXY_URL = "ASSISTANT_PROXY_URL"
	ENV_ASSISTANT_MODEL     = "ASSISTANT_MODEL"
	ENV_MONGODB_URI         = "MONGODB_URI"
	ENV_PARTICIPANT_ID      = "PARTICIPANT_ID"
)

const (
	DriverDataFoundation = "datafoundation"
	DriverSQLite         = "sqlite"
	DriverMongo          = "mongo"
)

type Config struct {
	// local, test, staging, production
	Environment string `json:"environment" yaml:"environment"`

	Logging logging.LoggerConfig `json:"logging" yaml:"logging"`

	HTTP struct {
		Host         string        `json:"host" yaml:"host"`
		Port         int           `json:"port" yaml:"port"`
		DebugMode    bool          `json:"debug_mode" yaml:"debug_mode"`
		AllowOrigins []string      `json:"allow_origins" yaml:"allow_origins"`
		ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
		WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	} `json:"http" yaml:"http"`

	Participant struct {
		DefaultID string `json:"default_id" yaml:"default_id"`
	} `json:"participant" yaml:"participant"`

	Store struct {
		Driver         string                      `json:"driver" yaml:"driver"`
		DataFoundation datafoundation.ClientConfig `json:"datafoundation" yaml:"datafoundation"`
		SQLite         struct {
			Path string `json:"path" yaml:"path"`
		} `json:"sqlite" yaml:"sqlite"`
		Mongo storage.MongoConfig `json:"mongo" yaml:"mongo"`
	} `json:"store" yaml:"store"`

	Assistant assistant.Config `json:"assistant" yaml:"assistant"`

	Chat struct {
		MaxIdle time.Duration `json:"max_idle" yaml:"max_idle"`
	} `json:"chat" yaml:"chat"`

	QuestionnaireFile string `json:"questionnaire_file" yaml:"questionnaire_file"`
	PromptsFile       string `json:"prompts_file" yaml:"prompts_file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	conf := &Config{Environment: "local"}
	conf.Logging.LogLevel = "info"
	conf.HTTP.Host = "0.0.0.0"
	conf.HTTP.Port = 8011
	conf.HTTP.ReadTimeout = 30 * time.Second
	conf.HTTP.WriteTimeout = 60 * time.Second
	conf.Participant.DefaultID = "4233"
	conf.Store.Driver = DriverDataFoundation
	conf.Store.DataFoundation.Token = "1"
	conf.Store.DataFoundation.Timeout = 30 * time.Second
	conf.Store.SQLite.Path = "meal-journal.db"
	conf.Store.Mongo.Database = "meal_journal"
	conf.Assistant.Gateway = "openrouter-gateway"
	conf.Assistant.Temperature = 0.7
	conf.Assistant.MaxTokens = 500
	conf.Assistant.Timeout = 60 * time.Second
	conf.Chat.MaxIdle = 2 * time.Hour
	return conf
}

// Load is Read followed by Validate.
func Load(path string) (*Config, error) {
	conf, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Read loads .env (when present), then the YAML file at path, falling back to
// CONFIG_FILE_PATH, then applies secret overrides from the environment.
func Read(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(ENV_CONFIG_FILE_PATH)
	}

	conf := Default()
	if path != "" {
		yamlFile, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(yamlFile, conf); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	conf.secretsOverride()
	return conf, nil
}

func (c *Config) secretsOverride() {
	if v := os.Getenv(ENV_DATASET_API_TOKEN); v != "" {
		c.Store.DataFoundation.APIToken = v
	}
	if v := os.Getenv(ENV_DATASET_API_URL); v != "" {
		c.Store.DataFoundation.BaseURL = v
	}
	if v := os.Getenv(ENV_DATASET_TOKEN); v != "" {
		c.Store.DataFoundation.Token = v
	}
	if v := os.Getenv(ENV_ASSISTANT_API_KEY); v != "" {
		c.Assistant.APIKey = v
	}
	if v := os.Getenv(ENV_ASSISTANT_PROXY_URL); v != "" {
		c.Assistant.ProxyURL = v
	}
	if v := os.Getenv(ENV_ASSISTANT_MODEL); v != "" {
		c.Assistant.Model = v
	}
	if v := os.Getenv(ENV_MONGODB_URI); v != "" {
		c.Store.Mongo.URI = v
	}
	if v := os.Getenv(ENV_PARTICIPANT_ID); v != "" {
		c.Participant.DefaultID = v
	}
}

func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}

	switch c.Store.Driver {
	case DriverDataFoundation:
		if c.Store.DataFoundation.BaseURL == "" {
			return fmt.Errorf("store.datafoundation.base_url is required (or set %s)", ENV_DATASET_API_URL)
		}
		if c.Store.DataFoundation.APIToken == "" {
			slog.Warn("dataset API token is empty; requests will likely be rejected")
		}
	case DriverSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required")
		}
	case DriverMongo:
		if c.Store.Mongo.URI == "" {
			return fmt.Errorf("store.mongo.uri is required (or set %s)", ENV_MONGODB_URI)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// AllowsDefaultParticipant reports whether requests may omit the participant.
func (c *Config) AllowsDefaultParticipant() bool {
	env := strings.ToLower(c.Environment)
	return (env == "local" || env == "test") && c.Participant.DefaultID != ""
}

// ParticipantFor returns id, or the configured default participant when id is
// empty and the environment allows it.
func (c *Config) ParticipantFor(id string) (string, error) {
	if id = strings.TrimSpace(id); id != "" {
		return id, nil
	}
	if c.AllowsDefaultParticipant() {
		return c.Participant.DefaultID, nil
	}
	return "", fmt.Errorf("participant id is required: %w", storage.ErrInvalidArgument)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
