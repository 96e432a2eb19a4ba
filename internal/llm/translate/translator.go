package translate

import (
	"context"
	"time"

	"github.com/Corphon/PersonaMarket/internal/llm"
	"github.com/Corphon/PersonaMarket/internal/utils"
)

// NewTranslator 启动时调用一次。凭据缺失或客户端创建失败都返回恒等翻译器
func NewTranslator(ctx context.Context, cfg Config, timeout time.Duration, logger *utils.Logger, metrics *utils.SynthesisMetrics) llm.Translator {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if !cfg.Configured() {
		logger.Info("translation not configured, text passes through unchanged", nil)
		return llm.NewUnavailableTranslator(metrics)
	}

	client, err := NewGoogleClient(ctx, cfg)
	if err != nil {
		logger.Error("translation client initialization failed", utils.Fields{"error": err.Error()})
		return llm.NewUnavailableTranslator(metrics)
	}
	logger.Info("translation service ready", nil)
	return llm.NewGuardedTranslator(client, timeout, logger, metrics)
}
