package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values for the completion endpoint.
const (
	DefaultEndpoint         = "https://api.mistral.ai/v1/chat/completions"
	DefaultModel            = "mistral-small"
	DefaultMaxTokens        = 1000
	DefaultTemperature      = 0.7
	DefaultTimeoutSec       = 30
	DefaultMaxResponseBytes = 4 << 20
	DefaultHostName         = "Terminal"
)

// APIConfig holds settings for the chat-completions endpoint.
type APIConfig struct {
	// Endpoint is the full URL requests are POSTed to.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Model is the model identifier placed in every payload.
	Model string `mapstructure:"model" yaml:"model"`

	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// TimeoutSec bounds the whole request, including reading the body.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxResponseBytes caps the response buffer.
	MaxResponseBytes int `mapstructure:"max_response_bytes" yaml:"max_response_bytes"`
}

// Timeout returns TimeoutSec as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// AccountConfig selects the account used on startup.
type AccountConfig struct {
	ID       string `mapstructure:"id" yaml:"id"`
	Username string `mapstructure:"username" yaml:"username"`

	// HostName is the client name reported in the system line.
	HostName string `mapstructure:"host_name" yaml:"host_name"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	// Theme is a glamour style name (dark, light, dracula, ...) or "auto".
	Theme    string `mapstructure:"theme" yaml:"theme"`
	Markdown bool   `mapstructure:"markdown" yaml:"markdown"`
}

// LogConfig controls where and how verbosely the client logs.
type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// StoreConfig locates the local database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Account AccountConfig `mapstructure:"account" yaml:"account"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// ConfigDir returns ~/.config/mistral-chat, falling back to the working
// directory when the home directory is unknown.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mistral-chat")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mistral-chat/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			Endpoint:         DefaultEndpoint,
			Model:            DefaultModel,
			MaxTokens:        DefaultMaxTokens,
			Temperature:      DefaultTemperature,
			TimeoutSec:       DefaultTimeoutSec,
			MaxResponseBytes: DefaultMaxResponseBytes,
		},
		Account: AccountConfig{
			ID:       "default",
			Username: "",
			HostName: DefaultHostName,
		},
		Display: DisplayConfig{
			Theme:    "dark",
			Markdown: true,
		},
		Log: LogConfig{
			Path:  filepath.Join(dir, "mistral-chat.log"),
			Level: "info",
		},
		Store: StoreConfig{
			Path: filepath.Join(dir, "mistral-chat.db"),
		},
	}
}

func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("api.endpoint", d.API.Endpoint)
	v.SetDefault("api.model", d.API.Model)
	v.SetDefault("api.max_tokens", d.API.MaxTokens)
	v.SetDefault("api.temperature", d.API.Temperature)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("api.max_response_bytes", d.API.MaxResponseBytes)
	v.SetDefault("account.id", d.Account.ID)
	v.SetDefault("account.username", d.Account.Username)
	v.SetDefault("account.host_name", d.Account.HostName)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.markdown", d.Display.Markdown)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("store.path", d.Store.Path)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with MISTRAL_CHAT override file values
// (e.g. MISTRAL_CHAT_API_MODEL). If the file does not exist, defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MISTRAL_CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAppConfig()
	setDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		_, missing := err.(*os.PathError)
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			missing = true
		}
		if !missing {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.normalize(defaults)
	return cfg, nil
}

// normalize replaces zero or out-of-range values with defaults.
func (c *AppConfig) normalize(d *AppConfig) {
	if c.API.Endpoint == "" {
		c.API.Endpoint = d.API.Endpoint
	}
	if c.API.Model == "" {
		c.API.Model = d.API.Model
	}
	if c.API.MaxTokens <= 0 {
		c.API.MaxTokens = d.API.MaxTokens
	}
	if c.API.TimeoutSec <= 0 {
		c.API.TimeoutSec = d.API.TimeoutSec
	}
	if c.API.MaxResponseBytes <= 0 {
		c.API.MaxResponseBytes = d.API.MaxResponseBytes
	}
	if c.Account.ID == "" {
		c.Account.ID = d.Account.ID
	}
	if c.Account.HostName == "" {
		c.Account.HostName = d.Account.HostName
	}
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("account", cfg.Account)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
