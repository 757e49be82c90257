// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/awertt/midi-proxy/internal/scraper"
)

// EnvPrefix namespaces environment overrides, e.g. MIDIPROXY_SERVER_PORT.
const EnvPrefix = "MIDIPROXY"

// DotEnvFile is read, when present, before environment overrides apply.
const DotEnvFile = ".env"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Search   SearchConfig   `mapstructure:"search"`
	Relay    RelayConfig    `mapstructure:"relay"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int      `mapstructure:"port"`
	StaticDir             string   `mapstructure:"static_dir"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
	CORSOrigins           []string `mapstructure:"cors_origins"`
}

// UpstreamConfig describes the scraped search site.
type UpstreamConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	SearchPath        string `mapstructure:"search_path"`
	QueryParam        string `mapstructure:"query_param"`
	PageParam         string `mapstructure:"page_param"`
	UserAgent         string `mapstructure:"user_agent"`
	Referer           string `mapstructure:"referer"`
	RefererHostSuffix string `mapstructure:"referer_host_suffix"`
}

// SearchConfig holds defaults and ceilings for search parameters.
type SearchConfig struct {
	DefaultMaxPages    int `mapstructure:"default_max_pages"`
	MaxPagesCeiling    int `mapstructure:"max_pages_ceiling"`
	DefaultMaxResults  int `mapstructure:"default_max_results"`
	MaxResultsCeiling  int `mapstructure:"max_results_ceiling"`
	DefaultConcurrency int `mapstructure:"default_concurrency"`
	ConcurrencyCeiling int `mapstructure:"concurrency_ceiling"`
	DefaultTimeoutMs   int `mapstructure:"default_timeout_ms"`
	TimeoutCeilingMs   int `mapstructure:"timeout_ceiling_ms"`
}

// RelayConfig configures the single-resource relay.
type RelayConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	MaxRedirects  int  `mapstructure:"max_redirects"`
	RespectRobots bool `mapstructure:"respect_robots"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("upstream.base_url", "https://bitmidi.com")
	v.SetDefault("upstream.search_path", "/search")
	v.SetDefault("upstream.query_param", "q")
	v.SetDefault("upstream.page_param", "page")
	v.SetDefault("upstream.user_agent", "awertt-midi-proxy/1.0 (+https://awertt.org)")
	v.SetDefault("upstream.referer", "https://bitmidi.com/")
	v.SetDefault("upstream.referer_host_suffix", "bitmidi.com")
	v.SetDefault("search.default_max_pages", 3)
	v.SetDefault("search.max_pages_ceiling", 10)
	v.SetDefault("search.default_max_results", 10)
	v.SetDefault("search.max_results_ceiling", 25)
	v.SetDefault("search.default_concurrency", 6)
	v.SetDefault("search.concurrency_ceiling", 24)
	v.SetDefault("search.default_timeout_ms", 15000)
	v.SetDefault("search.timeout_ceiling_ms", 30000)
	v.SetDefault("relay.timeout_seconds", 15)
	v.SetDefault("http.max_redirects", 10)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	base, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute http(s) url")
	}
	bounds := []struct {
		name         string
		def, ceiling int
	}{
		{"max_pages", c.Search.DefaultMaxPages, c.Search.MaxPagesCeiling},
		{"max_results", c.Search.DefaultMaxResults, c.Search.MaxResultsCeiling},
		{"concurrency", c.Search.DefaultConcurrency, c.Search.ConcurrencyCeiling},
		{"timeout_ms", c.Search.DefaultTimeoutMs, c.Search.TimeoutCeilingMs},
	}
	for _, b := range bounds {
		if b.ceiling < 1 {
			return fmt.Errorf("search.%s ceiling must be >= 1", b.name)
		}
		if b.def < 1 || b.def > b.ceiling {
			return fmt.Errorf("search.default_%s must be in 1..%d", b.name, b.ceiling)
		}
	}
	if c.Relay.TimeoutSeconds <= 0 {
		return fmt.Errorf("relay.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRedirects < 0 {
		return fmt.Errorf("http.max_redirects must be >= 0")
	}
	return nil
}

// SearchLimits converts the search section into clamping bounds.
func (c Config) SearchLimits() scraper.Limits {
	return scraper.Limits{
		DefaultMaxPages:    c.Search.DefaultMaxPages,
		MaxPagesCeiling:    c.Search.MaxPagesCeiling,
		DefaultMaxResults:  c.Search.DefaultMaxResults,
		MaxResultsCeiling:  c.Search.MaxResultsCeiling,
		DefaultConcurrency: c.Search.DefaultConcurrency,
		ConcurrencyCeiling: c.Search.ConcurrencyCeiling,
		DefaultTimeout:     time.Duration(c.Search.DefaultTimeoutMs) * time.Millisecond,
		TimeoutCeiling:     time.Duration(c.Search.TimeoutCeilingMs) * time.Millisecond,
	}
}

// RelayTimeout is the per-request budget for /getMidi.
func (c Config) RelayTimeout() time.Duration {
	return time.Duration(c.Relay.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds a single inbound HTTP request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
