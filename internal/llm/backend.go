// internal/llm/backend.go
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/Corphon/PersonaMarket/internal/utils"
)

// Generation 一次生成调用的结果。Generative 为 false 表示文本来自兜底。
type Generation struct {
	Text       string
	Generative bool
	Provider   string
	Model      string
}

// TextGenerationBackend 生成后端能力抽象；Generate 为全函数，不返回错误
type TextGenerationBackend interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) Generation
	Available() bool
	Describe() BackendStatus
}

// BackendStatus 供 /api/llm/status 使用
type BackendStatus struct {
	Available bool     `json:"available"`
	Provider  string   `json:"provider,omitempty"`
	Model     string   `json:"model,omitempty"`
	Models    []string `json:"models,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// UnavailableBackend 未配置时使用，直接返回兜底文本，不做任何网络请求
type UnavailableBackend struct {
	Reason  string
	metrics *utils.SynthesisMetrics
}

func NewUnavailableBackend(reason string, metrics *utils.SynthesisMetrics) *UnavailableBackend {
	if metrics == nil {
		metrics = utils.NewSynthesisMetrics(nil)
	}
	return &UnavailableBackend{Reason: reason, metrics: metrics}
}

func (b *UnavailableBackend) Generate(_ context.Context, prompt string, _ int, _ float32) Generation {
	b.metrics.RecordGeneration("", false, 0)
	return Generation{Text: Fallback(prompt)}
}

func (b *UnavailableBackend) Available() bool { return false }

func (b *UnavailableBackend) Describe() BackendStatus {
	return BackendStatus{Available: false, Reason: b.Reason}
}

// LiveBackend 包装远程 Provider：单次尝试、超时即失败，任何失败都转为兜底文本
type LiveBackend struct {
	provider     Provider
	providerName string
	model        string
	timeout      time.Duration
	logger       *utils.Logger
	metrics      *utils.SynthesisMetrics
}

// DefaultTimeout 远程调用默认超时
const DefaultTimeout = 30 * time.Second

func NewLiveBackend(provider Provider, providerName, model string, timeout time.Duration, logger *utils.Logger, metrics *utils.SynthesisMetrics) *LiveBackend {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewSynthesisMetrics(nil)
	}
	return &LiveBackend{
		provider:     provider,
		providerName: providerName,
		model:        model,
		timeout:      timeout,
		logger:       logger,
		metrics:      metrics,
	}
}

func (b *LiveBackend) Available() bool { return true }

func (b *LiveBackend) Describe() BackendStatus {
	return BackendStatus{
		Available: true,
		Provider:  b.providerName,
		Model:     b.model,
		Models:    b.provider.GetSupportedModels(),
	}
}

func (b *LiveBackend) Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (gen Generation) {
	start := time.Now()

	// provider 内部 panic 也按失败处理
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("generative provider panicked", utils.Fields{"provider": b.providerName, "panic": r})
			b.metrics.RecordGeneration(b.providerName, false, time.Since(start))
			gen = Generation{Text: Fallback(prompt), Provider: b.providerName}
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.provider.CompleteText(callCtx, CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Model:       b.model,
	})
	elapsed := time.Since(start)

	if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
		err = ErrEmptyResponse
	}
	if err != nil {
		b.logger.Warn("generation failed, using fallback text", utils.Fields{
			"provider": b.providerName,
			"error":    err.Error(),
			"elapsed":  elapsed.Milliseconds(),
		})
		b.metrics.RecordGeneration(b.providerName, false, elapsed)
		return Generation{Text: Fallback(prompt), Provider: b.providerName}
	}

	b.metrics.RecordGeneration(b.providerName, true, elapsed)
	model := resp.ModelName
	if model == "" {
		model = b.model
	}
	return Generation{
		Text:       strings.TrimSpace(resp.Text),
		Generative: true,
		Provider:   b.providerName,
		Model:      model,
	}
}

// BackendConfig 选择后端所需的配置
type BackendConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// Configured 提供者名与密钥均存在
func (c BackendConfig) Configured() bool {
	return c.Provider != "" && c.APIKey != ""
}

// NewBackend 启动时调用一次：配置完整则构造 LiveBackend，否则返回 UnavailableBackend
func NewBackend(cfg BackendConfig, logger *utils.Logger, metrics *utils.SynthesisMetrics) TextGenerationBackend {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if !cfg.Configured() {
		logger.Warn("generative backend not configured, template fallback only", utils.Fields{"provider": cfg.Provider})
		return NewUnavailableBackend("generative backend not configured", metrics)
	}

	providerCfg := map[string]string{"api_key": cfg.APIKey}
	if cfg.Model != "" {
		providerCfg["default_model"] = cfg.Model
	}
	if cfg.BaseURL != "" {
		providerCfg["base_url"] = cfg.BaseURL
	}

	provider, err := GetProvider(cfg.Provider, providerCfg)
	if err != nil {
		logger.Error("generative provider initialization failed", utils.Fields{"provider": cfg.Provider, "error": err.Error()})
		return NewUnavailableBackend("provider initialization failed: "+err.Error(), metrics)
	}

	logger.Info("generative backend ready", utils.Fields{"provider": cfg.Provider, "model": cfg.Model})
	return NewLiveBackend(provider, cfg.Provider, cfg.Model, cfg.Timeout, logger, metrics)
}
