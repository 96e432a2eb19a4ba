// internal/api/router.go
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/PersonaMarket/internal/config"
	"github.com/Corphon/PersonaMarket/internal/di"
	"github.com/Corphon/PersonaMarket/internal/services"
	"github.com/Corphon/PersonaMarket/internal/utils"
)

// pinger 健康检查依赖
type pinger interface {
	Ping(ctx context.Context) error
}

// SetupRouter 配置HTTP路由，所有服务从容器获取
func SetupRouter(container *di.Container) (*gin.Engine, *PreviewHub, error) {
	cfg, err := di.Resolve[*config.Config](container, di.ServiceConfig)
	if err != nil {
		return nil, nil, err
	}
	logger, err := di.Resolve[*utils.Logger](container, di.ServiceLogger)
	if err != nil {
		return nil, nil, err
	}
	metrics, err := di.Resolve[*utils.SynthesisMetrics](container, di.ServiceMetrics)
	if err != nil {
		return nil, nil, err
	}
	personaService, err := di.Resolve[*services.PersonaService](container, di.ServicePersona)
	if err != nil {
		return nil, nil, fmt.Errorf("合成服务未正确初始化: %w", err)
	}
	marketplace, err := di.Resolve[*services.MarketplaceService](container, di.ServiceMarketplace)
	if err != nil {
		return nil, nil, fmt.Errorf("市场服务未正确初始化: %w", err)
	}
	stats, err := di.Resolve[*services.StatsService](container, di.ServiceStats)
	if err != nil {
		return nil, nil, fmt.Errorf("统计服务未正确初始化: %w", err)
	}

	// 未注册时使用不带清理协程的内存计数，无需关闭
	limiter, err := di.Resolve[RateLimitStore](container, di.ServiceRateLimit)
	if err != nil {
		limiter = NewMemoryRateLimiter(0)
	}

	handler := NewHandler(personaService, marketplace, stats, logger)
	if db, err := di.Resolve[pinger](container, di.ServiceStorage); err == nil {
		handler.HealthCheck = db.Ping
	}
	hub := NewPreviewHub(personaService, logger)

	if cfg.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(requestIDMiddleware())
	r.Use(requestLogMiddleware(logger, metrics))
	r.Use(corsMiddleware())
	r.Use(bodyLimitMiddleware(cfg.MaxBodyBytes, handler.Response))

	r.GET("/health", handler.Health)

	// WebSocket 实时预览
	r.GET("/ws/persona/preview", hub.ServeWS)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(RateLimitByIP(limiter, "api", cfg.APIRateLimitPerHour, time.Hour, logger))
	{
		api.POST("/persona/preview", handler.PreviewPersona)
		api.POST("/translate", handler.Translate)

		// 生成接口单独限流
		generateGroup := api.Group("/generate")
		generateGroup.Use(RateLimitByIP(limiter, "generate", cfg.GenerateLimitPerMinute, time.Minute, logger))
		{
			generateGroup.POST("/artisan-bio", handler.GenerateArtisanBio)
			generateGroup.POST("/story-title", handler.GenerateStoryTitle)
			generateGroup.POST("/product-description", handler.GenerateProductDescription)
			generateGroup.POST("/cultural-context", handler.GenerateCulturalContext)
			generateGroup.POST("/marketing-content", handler.GenerateMarketingContent)
			generateGroup.POST("/product-bundles", handler.GenerateProductBundles)
		}

		// ===============================
		// 工匠与商品
		// ===============================
		artisanGroup := api.Group("/artisans")
		{
			artisanGroup.POST("", handler.CreateArtisan)
			artisanGroup.GET("/:id", handler.GetArtisan)
			artisanGroup.GET("/:id/products", handler.ListArtisanProducts)
		}

		productGroup := api.Group("/products")
		{
			productGroup.POST("", handler.CreateProduct)
			productGroup.PUT("/:id/status", handler.UpdateProductStatus)
		}

		api.GET("/marketplace", handler.ListMarketplace)

		// 状态与统计
		api.GET("/llm/status", handler.LLMStatus)
		api.GET("/stats", handler.GetStats)
	}

	return r, hub, nil
}
