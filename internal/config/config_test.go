package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress || cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if cfg.ReportsLocation != time.UTC {
		t.Fatalf("expected UTC reports location, got %s", cfg.ReportsLocation)
	}
	if cfg.ReportsCache != defaultReportsCacheSize || cfg.ReportsCacheTTL != time.Minute {
		t.Fatalf("unexpected cache settings: %d %s", cfg.ReportsCache, cfg.ReportsCacheTTL)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != defaultAllowedOrigins {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("JOBTRACKR_AUTH_SIGNING_SECRET", "from-env")
	t.Setenv("JOBTRACKR_REPORTS_TIMEZONE", "Europe/Berlin")
	t.Setenv("JOBTRACKR_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SigningSecret != "from-env" {
		t.Fatalf("unexpected signing secret %q", cfg.SigningSecret)
	}
	if cfg.ReportsLocation.String() != "Europe/Berlin" {
		t.Fatalf("unexpected reports location %s", cfg.ReportsLocation)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(values map[string]any)
		expected string
	}{
		{name: "missing secret", mutate: func(values map[string]any) { delete(values, "auth.signing_secret") }, expected: "auth.signing_secret"},
		{name: "bad timezone", mutate: func(values map[string]any) { values["reports.timezone"] = "Mars/Olympus" }, expected: "reports.timezone"},
		{name: "zero ttl", mutate: func(values map[string]any) { values["auth.token_ttl_minutes"] = 0 }, expected: "auth.token_ttl_minutes"},
		{name: "negative cache", mutate: func(values map[string]any) { values["reports.cache_size"] = -1 }, expected: "reports.cache_size"},
		{name: "no origins", mutate: func(values map[string]any) { values["cors.allowed_origins"] = " , " }, expected: "cors.allowed_origins"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			values := map[string]any{"auth.signing_secret": "secret"}
			testCase.mutate(values)

			configViper := NewViper()
			for key, value := range values {
				configViper.Set(key, value)
			}

			_, err := Load(configViper)
			if err == nil || !strings.Contains(err.Error(), testCase.expected) {
				t.Fatalf("expected error mentioning %s, got %v", testCase.expected, err)
			}
		})
	}
}
