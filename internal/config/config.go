package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Session   SessionConfig   `mapstructure:"session"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	History   HistoryConfig   `mapstructure:"history"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	CORS      CORSConfig      `mapstructure:"cors"`
	UI        UIConfig        `mapstructure:"ui"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServiceConfig points at the remote thumbnail service. Provider selects the
// generation backend: "thumbforge" (multipart HTTP) or "openai".
type ServiceConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Size    string `mapstructure:"size"`
}

type SessionConfig struct {
	Type    string `mapstructure:"type"`
	DataDir string `mapstructure:"data_dir"`
}

type PreviewConfig struct {
	Dir string `mapstructure:"dir"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type DashboardConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type UIConfig struct {
	DefaultTheme string `mapstructure:"default_theme"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	ProviderThumbforge = "thumbforge"
	ProviderOpenAI     = "openai"
)

var cfg *Config

func setDefaults(v *viper.Viper) {
	profile := defaultProfileDir()

	v.SetDefault("service.base_url", "http://localhost:5000")
	v.SetDefault("service.provider", ProviderThumbforge)
	v.SetDefault("service.timeout", time.Duration(0))

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "dall-e-2")
	v.SetDefault("openai.size", "1024x1024")

	v.SetDefault("session.type", "disk")
	v.SetDefault("session.data_dir", profile)
	v.SetDefault("preview.dir", filepath.Join(profile, "previews"))
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(profile, "history.db"))

	v.SetDefault("dashboard.port", 8787)
	v.SetDefault("dashboard.read_timeout", 30*time.Second)
	v.SetDefault("dashboard.write_timeout", 0)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type"})
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("ui.default_theme", "light")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from an optional YAML file and THUMBFORGE_* env
// vars. Precedence, lowest first: defaults, file, env.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("THUMBFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}

	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	cfg = c
	return c, nil
}

func (c *Config) validate() error {
	switch c.Service.Provider {
	case ProviderThumbforge, ProviderOpenAI:
	default:
		return errors.New("service.provider must be thumbforge or openai")
	}
	switch c.Session.Type {
	case "disk", "memory":
	default:
		return errors.New("session.type must be disk or memory")
	}
	if c.Service.Provider == ProviderOpenAI && c.OpenAI.APIKey == "" {
		return errors.New("openai.api_key is required for the openai provider")
	}
	return nil
}

func Get() *Config {
	return cfg
}

func defaultProfileDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "thumbforge")
	}
	return ".thumbforge"
}
