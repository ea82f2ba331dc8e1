package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the search service
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	Platforms  PlatformsConfig  `mapstructure:"platforms"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address             string `mapstructure:"address"`
	JWTSecret           string `mapstructure:"jwt_secret"`
	SearchStreamEnabled bool   `mapstructure:"search_stream_enabled"`
	MonitorsEnabled     bool   `mapstructure:"monitors_enabled"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address is required")
	}
	return nil
}

// PlatformsConfig groups per-platform integration settings.
// A platform with an empty key is treated as unconfigured: its adapter
// yields zero posts instead of failing the search.
type PlatformsConfig struct {
	X           XConfig           `mapstructure:"x"`
	TikTok      TikTokConfig      `mapstructure:"tiktok"`
	YouTube     YouTubeConfig     `mapstructure:"youtube"`
	Bluesky     BlueskyConfig     `mapstructure:"bluesky"`
	TruthSocial TruthSocialConfig `mapstructure:"truthsocial"`
	MaxResults  int               `mapstructure:"max_results"`
}

// XConfig contains X (Twitter) API settings
type XConfig struct {
	BearerToken string `mapstructure:"bearer_token"`
	Endpoint    string `mapstructure:"endpoint"`
}

// TikTokConfig contains TikTok research API settings
type TikTokConfig struct {
	AccessToken string `mapstructure:"access_token"`
	Endpoint    string `mapstructure:"endpoint"`
}

// YouTubeConfig contains YouTube Data API settings
type YouTubeConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// BlueskyConfig contains Bluesky AppView settings. The public AppView
// requires no credentials, so only the endpoint is configurable.
type BlueskyConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Enabled  bool   `mapstructure:"enabled"`
}

// TruthSocialConfig contains Truth Social (Mastodon-compatible) API settings
type TruthSocialConfig struct {
	AccessToken string `mapstructure:"access_token"`
	Endpoint    string `mapstructure:"endpoint"`
}

// ResilienceConfig controls retry/timeout behaviour around provider calls
type ResilienceConfig struct {
	Retries         int           `mapstructure:"retries"`
	Delay           time.Duration `mapstructure:"delay"`
	Backoff         float64       `mapstructure:"backoff"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	AITimeout       time.Duration `mapstructure:"ai_timeout"`
}

func (r ResilienceConfig) Validate() error {
	if r.Retries < 0 {
		return fmt.Errorf("resilience.retries cannot be negative")
	}
	if r.Backoff < 1 {
		return fmt.Errorf("resilience.backoff must be >= 1")
	}
	return nil
}

// LLMConfig contains settings for the analysis model
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN builds a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() (string, error) {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL, nil
	}
	if strings.TrimSpace(p.Host) == "" || strings.TrimSpace(p.DBName) == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis connection settings. Redis is optional: when
// the host is empty the provider cache and scheduler locks are disabled.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return r.Host + ":" + port
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// LoadConfig loads config from file
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.search_stream_enabled", true)
	viper.SetDefault("server.monitors_enabled", true)
	viper.SetDefault("platforms.max_results", 25)
	viper.SetDefault("platforms.bluesky.enabled", true)
	viper.SetDefault("resilience.retries", 2)
	viper.SetDefault("resilience.delay", time.Second)
	viper.SetDefault("resilience.backoff", 2.0)
	viper.SetDefault("resilience.provider_timeout", 30*time.Second)
	viper.SetDefault("resilience.ai_timeout", 45*time.Second)
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.timeout", 45*time.Second)
	viper.SetDefault("storage.redis.cache_ttl", 2*time.Minute)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CIVIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine: defaults plus CIVIC_* env vars carry a full config.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := config.Server.Validate(); err != nil {
		return nil, err
	}
	if err := config.Resilience.Validate(); err != nil {
		return nil, err
	}
	if err := config.Telemetry.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
