package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	DB        DBConfig        `yaml:"db" toml:"db"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Recording RecordingConfig `yaml:"recording" toml:"recording"`
	Events    EventsConfig    `yaml:"events" toml:"events"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts" toml:"timeouts"`
	Synthesis SynthesisConfig `yaml:"synthesis" toml:"synthesis"`
}

type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

type TransportConfig struct {
	Mode string `yaml:"mode" toml:"mode"`
}

type DBConfig struct {
	Path string `yaml:"path" toml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	Path  string `yaml:"path" toml:"path"`
}

// AuthConfig enables bearer token checks on the HTTP transport.
type AuthConfig struct {
	Enabled bool     `yaml:"enabled" toml:"enabled"`
	Tokens  []string `yaml:"tokens" toml:"tokens"`
}

type RecordingConfig struct {
	MaxDuration   time.Duration `yaml:"max_duration" toml:"max_duration"`
	RecentActions int           `yaml:"recent_actions" toml:"recent_actions"`
}

type EventsConfig struct {
	QueueSize int `yaml:"queue_size" toml:"queue_size"`
}

type TimeoutsConfig struct {
	Stop       time.Duration `yaml:"stop" toml:"stop"`
	Classify   time.Duration `yaml:"classify" toml:"classify"`
	Synthesize time.Duration `yaml:"synthesize" toml:"synthesize"`
	Validate   time.Duration `yaml:"validate" toml:"validate"`
}

type SynthesisConfig struct {
	Languages []string `yaml:"languages" toml:"languages"`
}

// Default returns the configuration used before any file or environment override.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		DB: DBConfig{
			Path: "flowscribe.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Recording: RecordingConfig{
			MaxDuration:   10 * time.Minute,
			RecentActions: 10,
		},
		Events: EventsConfig{
			QueueSize: 256,
		},
		Timeouts: TimeoutsConfig{
			Stop:       5 * time.Second,
			Classify:   5 * time.Second,
			Synthesize: 30 * time.Second,
			Validate:   60 * time.Second,
		},
		Synthesis: SynthesisConfig{
			Languages: []string{"java", "python", "javascript"},
		},
	}
}

// Load reads configuration from an optional YAML or TOML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("FLOWSCRIBE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("FLOWSCRIBE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("FLOWSCRIBE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid FLOWSCRIBE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("FLOWSCRIBE_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("FLOWSCRIBE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("FLOWSCRIBE_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if mode := os.Getenv("FLOWSCRIBE_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if tokens := os.Getenv("FLOWSCRIBE_AUTH_TOKENS"); tokens != "" {
		cfg.Auth.Enabled = true
		cfg.Auth.Tokens = splitList(tokens)
	}
	if maxSession := os.Getenv("FLOWSCRIBE_MAX_SESSION"); maxSession != "" {
		d, err := time.ParseDuration(maxSession)
		if err != nil {
			return fmt.Errorf("invalid FLOWSCRIBE_MAX_SESSION: %w", err)
		}
		cfg.Recording.MaxDuration = d
	}
	if langs := os.Getenv("FLOWSCRIBE_LANGUAGES"); langs != "" {
		cfg.Synthesis.Languages = splitList(langs)
	}
	return nil
}

// Validate reports settings the services cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("transport.mode must be stdio or http, got %q", c.Transport.Mode))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	if c.Events.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("events.queue_size must be positive, got %d", c.Events.QueueSize))
	}
	if c.Recording.MaxDuration < 0 {
		errs = append(errs, errors.New("recording.max_duration must not be negative"))
	}
	if c.Auth.Enabled && len(c.Auth.Tokens) == 0 {
		errs = append(errs, errors.New("auth.tokens must not be empty when auth is enabled"))
	}
	if _, err := c.Languages(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Languages parses the configured synthesis languages.
func (c Config) Languages() ([]script.Language, error) {
	out := make([]script.Language, 0, len(c.Synthesis.Languages))
	for _, name := range c.Synthesis.Languages {
		lang, err := script.ParseLanguage(name)
		if err != nil {
			return nil, fmt.Errorf("synthesis.languages: %w", err)
		}
		out = append(out, lang)
	}
	return out, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
