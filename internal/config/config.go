package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIBaseURL string `yaml:"api_url" env:"RELAY_API_URL"`
	WSBaseURL  string `yaml:"ws_url" env:"RELAY_WS_URL"`
	UserID     string `yaml:"user_id" env:"RELAY_USER_ID"`

	DataDir     string `yaml:"data_dir" env:"RELAY_DATA_DIR"`
	LogFilePath string `yaml:"log_file" env:"RELAY_LOG_FILE"`

	ReconnectInterval    time.Duration `yaml:"reconnect_interval" env:"RELAY_RECONNECT_INTERVAL"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" env:"RELAY_MAX_RECONNECT_ATTEMPTS"`
	HTTPTimeout          time.Duration `yaml:"http_timeout" env:"RELAY_HTTP_TIMEOUT"`
	MaxUploadBytes       int64         `yaml:"max_upload_bytes" env:"RELAY_MAX_UPLOAD_BYTES"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		APIBaseURL:           "http://localhost:8080",
		WSBaseURL:            "ws://localhost:8080",
		UserID:               "frontend-user",
		DataDir:              defaultDataDir(),
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 5,
		MaxUploadBytes:       10 * 1024 * 1024,
	}
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".relay"
	}
	return filepath.Join(homeDir, ".relay")
}

// Load layers defaults, the YAML file at path (or the optional
// DataDir/config.yml when path is empty), an optional .env file
// and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	// only the default location may be absent
	required := path != ""
	if !required {
		dir := cfg.DataDir
		if v := os.Getenv("RELAY_DATA_DIR"); v != "" {
			dir = v
		}
		path = filepath.Join(dir, "config.yml")
	}
	if err := loadFile(path, required, &cfg); err != nil {
		return nil, err
	}

	_ = godotenv.Load()

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.WSBaseURL = strings.TrimRight(cfg.WSBaseURL, "/")
	if cfg.LogFilePath == "" {
		cfg.LogFilePath = filepath.Join(cfg.DataDir, "relay.log")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, required bool, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api url cannot be empty")
	}
	if c.WSBaseURL == "" {
		return fmt.Errorf("websocket url cannot be empty")
	}
	if c.UserID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts cannot be negative")
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive")
	}
	return nil
}

// DatabasePath is the sqlite file backing durable storage.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "relay.db")
}
