// internal/llm/translate/google.go
package translate

import (
	"context"
	"errors"
	"fmt"

	gtranslate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

var errNoCredentials = errors.New("translation credentials not provided")

// Config Cloud Translation 客户端配置；APIKey 与 CredentialsFile 二选一
type Config struct {
	APIKey          string
	CredentialsFile string
	Endpoint        string
}

// Configured 是否具备调用条件
func (c Config) Configured() bool {
	return c.APIKey != "" || c.CredentialsFile != ""
}

// GoogleClient 基于 Cloud Translation v2 的翻译客户端
type GoogleClient struct {
	client *gtranslate.Client
}

// NewGoogleClient 创建客户端，不发出任何网络请求
func NewGoogleClient(ctx context.Context, cfg Config) (*GoogleClient, error) {
	if !cfg.Configured() {
		return nil, errNoCredentials
	}

	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gtranslate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create translate client: %w", err)
	}
	return &GoogleClient{client: client}, nil
}

// Translate 单段文本翻译；source 为 Und 时交给服务端检测
func (g *GoogleClient) Translate(ctx context.Context, text string, target, source language.Tag) (string, string, error) {
	opts := &gtranslate.Options{Format: gtranslate.Text}
	if source != language.Und {
		opts.Source = source
	}

	results, err := g.client.Translate(ctx, []string{text}, target, opts)
	if err != nil {
		return "", "", err
	}
	if len(results) == 0 {
		return "", "", errors.New("translate: empty result")
	}

	detected := ""
	if results[0].Source != language.Und {
		detected = results[0].Source.String()
	}
	return results[0].Text, detected, nil
}

func (g *GoogleClient) Close() error {
	return g.client.Close()
}
