// internal/llm/translator.go
package llm

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/Corphon/PersonaMarket/internal/utils"
)

// TranslationClient 远程翻译调用，允许返回错误
type TranslationClient interface {
	Translate(ctx context.Context, text string, target, source language.Tag) (translated string, detected string, err error)
	Close() error
}

// Translation 翻译结果；Translated 为 false 时 Text 与输入完全相同
type Translation struct {
	Text           string
	Translated     bool
	TargetLanguage string
	SourceLanguage string
}

// Translator 全函数：失败时返回原文
type Translator interface {
	Translate(ctx context.Context, text, target, source string) Translation
	Available() bool
}

// NormalizeLanguage 解析语言代码，返回规范形式
func NormalizeLanguage(code string) (language.Tag, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return language.Und, false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// UnavailableTranslator 翻译未配置：恒等映射
type UnavailableTranslator struct {
	metrics *utils.SynthesisMetrics
}

func NewUnavailableTranslator(metrics *utils.SynthesisMetrics) *UnavailableTranslator {
	if metrics == nil {
		metrics = utils.NewSynthesisMetrics(nil)
	}
	return &UnavailableTranslator{metrics: metrics}
}

func (t *UnavailableTranslator) Translate(_ context.Context, text, target, source string) Translation {
	t.metrics.RecordTranslation(false)
	return Translation{Text: text, TargetLanguage: target, SourceLanguage: source}
}

func (t *UnavailableTranslator) Available() bool { return false }

// GuardedTranslator 包装 TranslationClient，吸收所有错误
type GuardedTranslator struct {
	client  TranslationClient
	timeout time.Duration
	logger  *utils.Logger
	metrics *utils.SynthesisMetrics
}

func NewGuardedTranslator(client TranslationClient, timeout time.Duration, logger *utils.Logger, metrics *utils.SynthesisMetrics) *GuardedTranslator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewSynthesisMetrics(nil)
	}
	return &GuardedTranslator{client: client, timeout: timeout, logger: logger, metrics: metrics}
}

func (t *GuardedTranslator) Available() bool { return true }

func (t *GuardedTranslator) Translate(ctx context.Context, text, target, source string) (out Translation) {
	out = Translation{Text: text, TargetLanguage: target, SourceLanguage: source}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("translation client panicked", utils.Fields{"panic": r})
			t.metrics.RecordTranslation(false)
			out = Translation{Text: text, TargetLanguage: target, SourceLanguage: source}
		}
	}()

	if strings.TrimSpace(text) == "" {
		t.metrics.RecordTranslation(false)
		return out
	}

	targetTag, ok := NormalizeLanguage(target)
	if !ok {
		t.logger.Warn("invalid target language, returning original text", utils.Fields{"target": target})
		t.metrics.RecordTranslation(false)
		return out
	}
	sourceTag, _ := NormalizeLanguage(source)

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	translated, detected, err := t.client.Translate(callCtx, text, targetTag, sourceTag)
	if err != nil || strings.TrimSpace(translated) == "" {
		fields := utils.Fields{"target": target}
		if err != nil {
			fields["error"] = err.Error()
		}
		t.logger.Warn("translation failed, returning original text", fields)
		t.metrics.RecordTranslation(false)
		return out
	}

	t.metrics.RecordTranslation(true)
	out.Text = translated
	out.Translated = true
	out.TargetLanguage = targetTag.String()
	if source == "" && detected != "" {
		out.SourceLanguage = detected
	}
	return out
}

// Close 释放底层客户端
func (t *GuardedTranslator) Close() error {
	return t.client.Close()
}
