// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Corphon/PersonaMarket/internal/llm"
	"github.com/Corphon/PersonaMarket/internal/llm/translate"
)

// 配置文件在 XDG 目录下的相对路径
const xdgConfigName = "persona-market/config.toml"

// Config 进程级配置，启动时读取一次，之后只读
type Config struct {
	Port         string
	DebugMode    bool
	LogLevel     string
	DataDir      string
	LogDir       string
	DatabasePath string

	// 生成后端
	LLMProvider      string
	LLMModel         string
	LLMBaseURL       string
	LLMTimeout       time.Duration
	GoogleAPIKey     string
	OpenRouterAPIKey string
	AnthropicAPIKey  string

	// 翻译
	GoogleCloudProject  string
	CredentialsFile     string
	TranslateAPIKey     string
	TranslationEndpoint string

	// 限流
	RedisURL               string
	APIRateLimitPerHour    int
	GenerateLimitPerMinute int

	// 请求体上限（字节）
	MaxBodyBytes int64

	// 实际读取到的配置文件，未使用时为空
	ConfigFile string
}

var defaults = map[string]interface{}{
	"PORT":                "8080",
	"DEBUG_MODE":          true,
	"LOG_LEVEL":           "info",
	"DATA_DIR":            "data",
	"LOG_DIR":             "logs",
	"DATABASE_PATH":       "",
	"LLM_PROVIDER":        "google",
	"LLM_TIMEOUT":         "30s",
	"API_RATE_LIMIT":      100,
	"GENERATE_RATE_LIMIT": 30,
	"MAX_BODY_BYTES":      DefaultMaxBodyBytes,
}

// DefaultMaxBodyBytes 默认请求体上限 16MB
const DefaultMaxBodyBytes = 16 << 20

var envKeys = []string{
	"PORT", "DEBUG_MODE", "LOG_LEVEL", "DATA_DIR", "LOG_DIR", "DATABASE_PATH",
	"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "LLM_TIMEOUT",
	"GOOGLE_API_KEY", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY",
	"GOOGLE_CLOUD_PROJECT", "GOOGLE_APPLICATION_CREDENTIALS", "TRANSLATE_API_KEY", "TRANSLATE_ENDPOINT",
	"REDIS_URL", "API_RATE_LIMIT", "GENERATE_RATE_LIMIT", "MAX_BODY_BYTES",
}

// Load 读取配置：.env（可选） -> 配置文件（可选） -> 环境变量，后者优先。
// configFile 为空时在 XDG 配置目录中查找。
func Load(configFile string) (*Config, error) {
	// .env 不存在不是错误
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	if configFile == "" {
		if found, err := xdg.SearchConfigFile(xdgConfigName); err == nil {
			configFile = found
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败 %s: %w", configFile, err)
		}
	}

	timeout, err := parseTimeout(v.GetString("LLM_TIMEOUT"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                   v.GetString("PORT"),
		DebugMode:              v.GetBool("DEBUG_MODE"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		DataDir:                v.GetString("DATA_DIR"),
		LogDir:                 v.GetString("LOG_DIR"),
		DatabasePath:           v.GetString("DATABASE_PATH"),
		LLMProvider:            strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER"))),
		LLMModel:               v.GetString("LLM_MODEL"),
		LLMBaseURL:             v.GetString("LLM_BASE_URL"),
		LLMTimeout:             timeout,
		GoogleAPIKey:           v.GetString("GOOGLE_API_KEY"),
		OpenRouterAPIKey:       v.GetString("OPENROUTER_API_KEY"),
		AnthropicAPIKey:        v.GetString("ANTHROPIC_API_KEY"),
		GoogleCloudProject:     v.GetString("GOOGLE_CLOUD_PROJECT"),
		CredentialsFile:        v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
		TranslateAPIKey:        v.GetString("TRANSLATE_API_KEY"),
		TranslationEndpoint:    v.GetString("TRANSLATE_ENDPOINT"),
		RedisURL:               v.GetString("REDIS_URL"),
		APIRateLimitPerHour:    v.GetInt("API_RATE_LIMIT"),
		GenerateLimitPerMinute: v.GetInt("GENERATE_RATE_LIMIT"),
		MaxBodyBytes:           v.GetInt64("MAX_BODY_BYTES"),
		ConfigFile:             configFile,
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "persona.db")
	}
	if cfg.LLMTimeout == 0 {
		cfg.LLMTimeout = llm.DefaultTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 只检查会让进程无法启动的配置；缺少密钥不是错误
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("PORT 不能为空")
	}
	if c.APIRateLimitPerHour < 0 || c.GenerateLimitPerMinute < 0 {
		return errors.New("rate limits must not be negative")
	}
	if c.LLMTimeout < time.Millisecond {
		return fmt.Errorf("LLM_TIMEOUT 过短: %v", c.LLMTimeout)
	}
	if c.MaxBodyBytes < 0 {
		return errors.New("MAX_BODY_BYTES must not be negative")
	}
	return nil
}

// parseTimeout 不带单位的数字按秒处理，如 "30" 即 30s
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("LLM_TIMEOUT 无效 %q: %w", raw, err)
	}
	return d, nil
}

// EnsureDirs 创建数据和日志目录
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.LogDir, filepath.Dir(c.DatabasePath)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}
	return nil
}

// providerAPIKey 当前选择的提供者对应的密钥
func (c *Config) providerAPIKey() string {
	switch c.LLMProvider {
	case "google":
		return c.GoogleAPIKey
	case "openrouter":
		return c.OpenRouterAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// GenerativeConfigured 生成后端是否可用（提供者与密钥都存在）
func (c *Config) GenerativeConfigured() bool {
	return c.Backend().Configured()
}

// TranslationConfigured 翻译服务是否可用
func (c *Config) TranslationConfigured() bool {
	return c.Translation().Configured()
}

// Backend 生成后端配置
func (c *Config) Backend() llm.BackendConfig {
	return llm.BackendConfig{
		Provider: c.LLMProvider,
		APIKey:   c.providerAPIKey(),
		Model:    c.LLMModel,
		BaseURL:  c.LLMBaseURL,
		Timeout:  c.LLMTimeout,
	}
}

// Translation 翻译客户端配置。优先使用服务账号凭据；
// 仅有 GOOGLE_CLOUD_PROJECT 时回退到 GOOGLE_API_KEY
func (c *Config) Translation() translate.Config {
	cfg := translate.Config{Endpoint: c.TranslationEndpoint}
	switch {
	case c.CredentialsFile != "":
		cfg.CredentialsFile = c.CredentialsFile
	case c.TranslateAPIKey != "":
		cfg.APIKey = c.TranslateAPIKey
	case c.GoogleCloudProject != "" && c.GoogleAPIKey != "":
		cfg.APIKey = c.GoogleAPIKey
	}
	return cfg
}
