package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

// EnvPrefix prefixes environment overrides, e.g. TIKTOK_TIKTOK_MS_TOKEN
const EnvPrefix = "TIKTOK"

// Manager manages application configuration
type Manager struct {
	config *models.Config
	viper  *viper.Viper
	logger zerolog.Logger
	file   io.Closer
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: &models.Config{},
		viper:  viper.New(),
		logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
}

// Load loads configuration from file and environment. configPath may name
// a config file or a directory holding config.yaml.
func (m *Manager) Load(configPath string) (*models.Config, error) {
	m.setDefaults()

	m.viper.SetConfigType("yaml")
	switch {
	case configPath != "" && filepath.Ext(configPath) != "":
		m.viper.SetConfigFile(configPath)
	case configPath != "":
		m.viper.SetConfigName("config")
		m.viper.AddConfigPath(configPath)
	default:
		m.viper.SetConfigName("config")
		m.viper.AddConfigPath(".")
		m.viper.AddConfigPath("./config")
		m.viper.AddConfigPath("$HOME/.tiktok-scraper")
	}

	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		m.logger.Debug().Msg("No config file found, using defaults")
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(m.config); err != nil {
		return nil, err
	}

	if err := m.configureLogger(); err != nil {
		return nil, err
	}

	return m.config, nil
}

// ConfigFile returns the config file in use, empty when running on defaults
func (m *Manager) ConfigFile() string {
	return m.viper.ConfigFileUsed()
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *models.Config {
	return m.config
}

// UpdateConfig updates specific configuration values
func (m *Manager) UpdateConfig(updates map[string]interface{}) error {
	for key, value := range updates {
		m.viper.Set(key, value)
	}
	if err := m.viper.Unmarshal(m.config); err != nil {
		return err
	}
	return Validate(m.config)
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 8080)
	m.viper.SetDefault("server.read_timeout", 30)
	m.viper.SetDefault("server.write_timeout", 300)

	// Download defaults
	m.viper.SetDefault("download.timeout", 300)
	m.viper.SetDefault("download.save_path", "./downloads")

	// Database defaults
	m.viper.SetDefault("database.enabled", true)
	m.viper.SetDefault("database.path", "./data/tiktok.db")

	// Log defaults
	m.viper.SetDefault("log.level", "info")
	m.viper.SetDefault("log.format", "text")
	m.viper.SetDefault("log.output", "stderr")

	// Proxy defaults
	m.viper.SetDefault("proxy.enabled", false)
	m.viper.SetDefault("proxy.type", "http")

	// TikTok defaults
	m.viper.SetDefault("tiktok.cookie", "")
	m.viper.SetDefault("tiktok.cookie_file", "")
	m.viper.SetDefault("tiktok.user_agent", "")
	m.viper.SetDefault("tiktok.ms_token", "")
	m.viper.SetDefault("tiktok.timeout", 30)
	m.viper.SetDefault("tiktok.page_size", 20)
	m.viper.SetDefault("tiktok.reply_page_size", 20)
	m.viper.SetDefault("tiktok.max_pages", 1000)
	m.viper.SetDefault("tiktok.max_reply_pages", 500)
	m.viper.SetDefault("tiktok.reply_cursor_mode", "page")

	m.viper.SetDefault("fields.dir", "")

	// Auth defaults
	m.viper.SetDefault("auth.enabled", false)
	m.viper.SetDefault("auth.jwt_secret", "")
	m.viper.SetDefault("auth.token_expiry", 24)

	// Rate limit defaults
	m.viper.SetDefault("rate_limit.enabled", true)
	m.viper.SetDefault("rate_limit.requests_per_second", 5)
	m.viper.SetDefault("rate_limit.burst", 10)
	m.viper.SetDefault("rate_limit.whitelisted_ips", []string{"127.0.0.1", "::1"})
}

// Validate checks values that would break the scraper at runtime
func Validate(config *models.Config) error {
	switch {
	case config.TikTok.PageSize <= 0:
		return fmt.Errorf("tiktok.page_size must be positive, got %d", config.TikTok.PageSize)
	case config.TikTok.ReplyPageSize <= 0:
		return fmt.Errorf("tiktok.reply_page_size must be positive, got %d", config.TikTok.ReplyPageSize)
	case config.TikTok.MaxPages <= 0 || config.TikTok.MaxReplyPages <= 0:
		return errors.New("tiktok page limits must be positive")
	}

	switch config.TikTok.ReplyCursorMode {
	case "page", "offset":
	default:
		return fmt.Errorf("tiktok.reply_cursor_mode must be page or offset, got %q", config.TikTok.ReplyCursorMode)
	}

	if config.Proxy.Enabled {
		switch config.Proxy.Type {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("unsupported proxy type %q", config.Proxy.Type)
		}
	}

	if config.Auth.Enabled && config.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}
	return nil
}

// WriteDefault writes the default configuration as YAML to path
func WriteDefault(path string) error {
	m := NewManager()
	m.setDefaults()
	if err := m.viper.Unmarshal(m.config); err != nil {
		return fmt.Errorf("error building default config: %w", err)
	}

	data, err := Marshal(m.config)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error writing default config: %w", err)
	}
	return nil
}

// Marshal renders a configuration as YAML with secrets masked
func Marshal(config *models.Config) ([]byte, error) {
	masked := *config
	if masked.Auth.JWTSecret != "" {
		masked.Auth.JWTSecret = "********"
	}
	if masked.Proxy.Password != "" {
		masked.Proxy.Password = "********"
	}

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return append([]byte("# TikTok scraper configuration\n"), data...), nil
}

// configureLogger configures the logger based on settings
func (m *Manager) configureLogger() error {
	level, err := zerolog.ParseLevel(m.config.Log.Level)
	if err != nil || m.config.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	switch m.config.Log.Output {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(m.config.Log.Output), 0755); err != nil {
			return fmt.Errorf("error creating log directory: %w", err)
		}
		file, err := os.OpenFile(m.config.Log.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		m.file = file
		out = file
	}

	if m.config.Log.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: m.file != nil}
	}

	m.logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// GetLogger returns the logger instance
func (m *Manager) GetLogger() zerolog.Logger {
	return m.logger
}

// Close releases the log file, if any
func (m *Manager) Close() error {
	if m.file == nil {
		return nil
	}
	return m.file.Close()
}
