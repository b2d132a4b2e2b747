package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                  = "JOBTRACKR"
	defaultHTTPAddress         = "0.0.0.0:5000"
	defaultDatabasePath        = "jobtrackr.db"
	defaultLogLevel            = "info"
	defaultLogFormat           = "json"
	defaultTokenTTLMinutes     = 7 * 24 * 60
	defaultCookieName          = "token"
	defaultAllowedOrigins      = "http://localhost:5173"
	defaultReportsTimezone     = "UTC"
	defaultReportsCacheSize    = 256
	defaultReportsCacheTTLSecs = 60
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	LogFormat       string
	SigningSecret   string
	TokenTTL        time.Duration
	CookieName      string
	CookieSecure    bool
	AllowedOrigins  []string
	ReportsLocation *time.Location
	ReportsCache    int
	ReportsCacheTTL time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.cookie_secure", false)
	configViper.SetDefault("cors.allowed_origins", defaultAllowedOrigins)
	configViper.SetDefault("reports.timezone", defaultReportsTimezone)
	configViper.SetDefault("reports.cache_size", defaultReportsCacheSize)
	configViper.SetDefault("reports.cache_ttl_seconds", defaultReportsCacheTTLSecs)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	location, err := time.LoadLocation(strings.TrimSpace(configViper.GetString("reports.timezone")))
	if err != nil {
		return AppConfig{}, fmt.Errorf("reports.timezone is invalid: %w", err)
	}

	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		LogFormat:       configViper.GetString("log.format"),
		SigningSecret:   configViper.GetString("auth.signing_secret"),
		TokenTTL:        time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		CookieName:      configViper.GetString("auth.cookie_name"),
		CookieSecure:    configViper.GetBool("auth.cookie_secure"),
		AllowedOrigins:  splitList(configViper.GetString("cors.allowed_origins")),
		ReportsLocation: location,
		ReportsCache:    configViper.GetInt("reports.cache_size"),
		ReportsCacheTTL: time.Duration(configViper.GetInt("reports.cache_ttl_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins is required")
	}
	if c.ReportsCache < 0 {
		return fmt.Errorf("reports.cache_size must not be negative")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
