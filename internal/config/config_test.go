package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

// isolate 清空相关环境变量并切换到临时目录，避免读到开发者本地的 .env
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || !cfg.DebugMode || cfg.LLMProvider != "google" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LLMTimeout != 30*time.Second {
		t.Fatalf("LLMTimeout = %v", cfg.LLMTimeout)
	}
	if cfg.DatabasePath != filepath.Join("data", "persona.db") {
		t.Fatalf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.GenerativeConfigured() || cfg.TranslationConfigured() {
		t.Fatal("nothing should be configured without keys")
	}
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", "OpenRouter")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("GENERATE_RATE_LIMIT", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.LLMProvider != "openrouter" || cfg.GenerateLimitPerMinute != 7 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	b := cfg.Backend()
	if !cfg.GenerativeConfigured() || b.APIKey != "or-key" || b.Timeout != 5*time.Second {
		t.Fatalf("unexpected backend config: %+v", b)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "config.toml")
	content := "PORT = \"7070\"\nGOOGLE_API_KEY = \"g-key\"\nGOOGLE_CLOUD_PROJECT = \"artisans\"\n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" || cfg.ConfigFile != file {
		t.Fatalf("config file not applied: %+v", cfg)
	}
	if !cfg.GenerativeConfigured() {
		t.Fatal("google provider with key should be configured")
	}
	if !cfg.TranslationConfigured() || cfg.Translation().APIKey != "g-key" {
		t.Fatalf("translation should reuse the google key: %+v", cfg.Translation())
	}
}

func TestUnknownProviderNotConfigured(t *testing.T) {
	cfg := &Config{LLMProvider: "mystery", GoogleAPIKey: "k"}
	if cfg.GenerativeConfigured() {
		t.Fatal("unknown provider must not count as configured")
	}
}

func TestValidate(t *testing.T) {
	if err := (&Config{Port: ""}).Validate(); err == nil {
		t.Fatal("empty port should fail")
	}
	if err := (&Config{Port: "1", APIRateLimitPerHour: -1}).Validate(); err == nil {
		t.Fatal("negative limit should fail")
	}
}

func TestLLMTimeoutUnits(t *testing.T) {
	cases := map[string]time.Duration{
		"30":    30 * time.Second,
		"2.5":   2500 * time.Millisecond,
		"750ms": 750 * time.Millisecond,
		"1m":    time.Minute,
		"0":     30 * time.Second,
	}
	for raw, want := range cases {
		isolate(t)
		t.Setenv("LLM_TIMEOUT", raw)

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("LLM_TIMEOUT=%q: %v", raw, err)
		}
		if cfg.LLMTimeout != want {
			t.Errorf("LLM_TIMEOUT=%q gave %v, want %v", raw, cfg.LLMTimeout, want)
		}
	}
}

func TestLLMTimeoutRejected(t *testing.T) {
	for _, raw := range []string{"soon", "500us", "-5"} {
		isolate(t)
		t.Setenv("LLM_TIMEOUT", raw)
		if _, err := Load(""); err == nil {
			t.Errorf("LLM_TIMEOUT=%q should be rejected", raw)
		}
	}
}

func TestMaxBodyBytes(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Fatalf("MaxBodyBytes = %d", cfg.MaxBodyBytes)
	}

	t.Setenv("MAX_BODY_BYTES", "1024")
	if cfg, err = Load(""); err != nil || cfg.MaxBodyBytes != 1024 {
		t.Fatalf("MAX_BODY_BYTES not applied: %v, %v", cfg, err)
	}
}
