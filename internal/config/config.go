package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // history dates must resolve Asia/Kolkata on minimal images

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	History HistoryConfig `yaml:"history"`
	ML      MLConfig      `yaml:"ml"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port           string   `yaml:"port" validate:"required,numeric"`
	StaticDir      string   `yaml:"static_dir"`
	Debug          bool     `yaml:"debug"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StorageConfig struct {
	Type string `yaml:"type" validate:"oneof=sqlite file memory postgres s3"`
	Path string `yaml:"path"` // SQLite file or file store directory
	DSN  string `yaml:"dsn" validate:"required_if=Type postgres"`

	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type HistoryConfig struct {
	Key      string `yaml:"key" validate:"required"`
	MaxItems int    `yaml:"max_items" validate:"gte=0"`
	TimeZone string `yaml:"time_zone" validate:"timezone"`
}

type MLConfig struct {
	Type              string        `yaml:"type" validate:"oneof=vertex gemini anthropic fixture"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	CacheSize         int           `yaml:"cache_size" validate:"gte=0"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gte=0"`

	Vertex struct {
		ProjectID       string `yaml:"project_id"`
		Location        string `yaml:"location"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"vertex"`

	Gemini struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"gemini"`

	Anthropic struct {
		APIKey    string `yaml:"api_key"`
		BaseURL   string `yaml:"base_url"`
		MaxTokens int64  `yaml:"max_tokens"`
	} `yaml:"anthropic"`

	Fixture struct {
		Path string `yaml:"path"`
	} `yaml:"fixture"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=console json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// LoadConfig loads configuration from a YAML file, expanding ${VAR} references
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes YAML config, applies defaults and environment fallbacks, and validates the result
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("server port is not set in config file")
	}
	config.applyDefaults()
	config.applyEnv()

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./static"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Path == "" {
		switch c.Storage.Type {
		case "file":
			c.Storage.Path = "data"
		default:
			c.Storage.Path = "agridoc.db"
		}
	}
	if c.History.Key == "" {
		c.History.Key = "agri_history"
	}
	if c.History.TimeZone == "" {
		c.History.TimeZone = "Asia/Kolkata"
	}
	if c.ML.Type == "" {
		c.ML.Type = "vertex"
	}
	if c.ML.Model == "" {
		switch c.ML.Type {
		case "anthropic":
			c.ML.Model = "claude-sonnet-4-5"
		default:
			c.ML.Model = "gemini-2.5-flash"
		}
	}
	if c.ML.Anthropic.MaxTokens == 0 {
		c.ML.Anthropic.MaxTokens = 2048
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
		if c.Server.Debug {
			c.Log.Level = "debug"
		}
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
}

// applyEnv fills backend credentials that were left out of the file
func (c *Config) applyEnv() {
	if c.ML.Vertex.ProjectID == "" {
		c.ML.Vertex.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if c.ML.Vertex.Location == "" {
		c.ML.Vertex.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if c.ML.Vertex.CredentialsFile == "" {
		c.ML.Vertex.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if c.ML.Gemini.APIKey == "" {
		c.ML.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.ML.Anthropic.APIKey == "" {
		c.ML.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Validate checks struct tags and the backend-specific requirements tags cannot express
func Validate(c *Config) error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.ML.Type {
	case "vertex":
		if c.ML.Vertex.ProjectID == "" || c.ML.Vertex.Location == "" {
			return fmt.Errorf("invalid configuration: vertex backend needs ml.vertex.project_id and ml.vertex.location")
		}
	case "gemini":
		if c.ML.Gemini.APIKey == "" {
			return fmt.Errorf("invalid configuration: gemini backend needs ml.gemini.api_key or GEMINI_API_KEY")
		}
	case "anthropic":
		if c.ML.Anthropic.APIKey == "" {
			return fmt.Errorf("invalid configuration: anthropic backend needs ml.anthropic.api_key or ANTHROPIC_API_KEY")
		}
	case "fixture":
		if c.ML.Fixture.Path == "" {
			return fmt.Errorf("invalid configuration: fixture backend needs ml.fixture.path")
		}
	}

	if c.Storage.Type == "s3" && (c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "") {
		return fmt.Errorf("invalid configuration: s3 storage needs storage.s3.endpoint and storage.s3.bucket")
	}
	return nil
}

// Location resolves the configured history time zone
func (h HistoryConfig) Location() *time.Location {
	loc, err := time.LoadLocation(h.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	if path := os.Getenv("AGRIDOC_CONFIG"); path != "" {
		return path
	}

	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.yaml")
	}

	return "config.yaml"
}
