// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Corphon/PersonaMarket/internal/api"
	"github.com/Corphon/PersonaMarket/internal/config"
	"github.com/Corphon/PersonaMarket/internal/di"
	"github.com/Corphon/PersonaMarket/internal/llm"
	"github.com/Corphon/PersonaMarket/internal/llm/translate"
	"github.com/Corphon/PersonaMarket/internal/services"
	"github.com/Corphon/PersonaMarket/internal/storage"
	"github.com/Corphon/PersonaMarket/internal/utils"

	// 注册生成后端提供者
	_ "github.com/Corphon/PersonaMarket/internal/llm/providers/anthropic"
	_ "github.com/Corphon/PersonaMarket/internal/llm/providers/google"
	_ "github.com/Corphon/PersonaMarket/internal/llm/providers/openrouter"
)

const shutdownTimeout = 30 * time.Second

// httpServer 便于测试替换
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 持有进程生命周期内的全部依赖，由 main 或 CLI 创建
type App struct {
	config    *config.Config
	container *di.Container
	logger    *utils.Logger
	collector *utils.MetricsCollector
	router    http.Handler
	hub       *api.PreviewHub
	server    httpServer
	closers   []io.Closer
	stopChan  chan os.Signal
}

// New 创建应用；logger 为 nil 时使用进程日志
func New(cfg *config.Config, logger *utils.Logger) *App {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &App{
		config:    cfg,
		container: di.NewContainer(),
		logger:    logger,
		collector: utils.NewMetricsCollector(),
		stopChan:  make(chan os.Signal, 1),
	}
}

// InitLogger 设置日志级别并把日志同时写入 LogDir 下按日期命名的文件
func (a *App) InitLogger() error {
	a.logger.SetLogLevel(utils.ParseLogLevel(a.config.LogLevel))
	if a.config.LogDir == "" {
		return nil
	}
	name := fmt.Sprintf("persona-%s.log", time.Now().Format("2006-01-02"))
	if err := a.logger.InitLogFile(filepath.Join(a.config.LogDir, name)); err != nil {
		return err
	}
	a.closers = append(a.closers, a.logger)
	return nil
}

// InitPersona 创建合成服务：生成后端与翻译缺少配置时降级为模板，不视为错误
func (a *App) InitPersona(ctx context.Context) *services.PersonaService {
	if ps, err := di.Resolve[*services.PersonaService](a.container, di.ServicePersona); err == nil {
		return ps
	}
	cfg := a.config
	metrics := utils.NewSynthesisMetrics(a.collector)

	a.container.Register(di.ServiceConfig, cfg)
	a.container.Register(di.ServiceLogger, a.logger)
	a.container.Register(di.ServiceMetrics, metrics)

	backend := llm.NewBackend(cfg.Backend(), a.logger, metrics)
	translator := translate.NewTranslator(ctx, cfg.Translation(), cfg.LLMTimeout, a.logger, metrics)
	if c, ok := translator.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	personaService := services.NewPersonaService(backend, translator, a.logger).WithMetrics(metrics)
	a.container.Register(di.ServicePersona, personaService)
	return personaService
}

// InitServices 按依赖顺序创建服务并注册到容器
func (a *App) InitServices(ctx context.Context) error {
	cfg := a.config

	// 1. 合成服务
	personaService := a.InitPersona(ctx)

	// 2. 存储
	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("打开数据库失败: %w", err)
	}
	a.closers = append(a.closers, db)
	a.container.Register(di.ServiceStorage, db)

	// 3. 业务服务
	a.container.Register(di.ServiceMarketplace, services.NewMarketplaceService(db, personaService, a.logger))
	a.container.Register(di.ServiceStats, services.NewStatsService(a.collector, db))

	// 4. 限流存储：配置了 REDIS_URL 时多实例共享计数
	if cfg.RedisURL != "" {
		limiter, err := api.NewRedisRateLimiter(ctx, cfg.RedisURL)
		if err != nil {
			a.logger.Warn("redis unavailable, using in-memory rate limiting", utils.Fields{"error": err.Error()})
		} else {
			a.closers = append(a.closers, limiter)
			a.container.Register(di.ServiceRateLimit, limiter)
		}
	}
	if !a.container.Has(di.ServiceRateLimit) {
		limiter := api.NewMemoryRateLimiter(time.Hour)
		a.closers = append(a.closers, limiter)
		a.container.Register(di.ServiceRateLimit, limiter)
	}

	backend, translation := personaService.BackendStatus()
	a.logger.Info("services initialized", utils.Fields{
		"services":             a.container.GetNames(),
		"generative_available": backend.Available,
		"translation":          translation,
	})
	return nil
}

// Initialize 完整初始化：目录、日志、服务、路由
func (a *App) Initialize(ctx context.Context) error {
	if err := a.config.EnsureDirs(); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	if err := a.InitLogger(); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	if err := a.InitServices(ctx); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, hub, err := api.SetupRouter(a.container)
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router
	a.hub = hub
	a.server = &http.Server{
		Addr:              ":" + a.config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run 启动HTTP服务并阻塞到收到停止信号
func (a *App) Run() error {
	if a.server == nil {
		return errors.New("app not initialized")
	}
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	errChan := make(chan error, 1)
	go func() {
		a.logger.Infof("server listening on :%s", a.config.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		a.cleanup()
		return fmt.Errorf("启动服务器失败: %w", err)
	case sig := <-a.stopChan:
		a.logger.Info("shutting down", utils.Fields{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.hub != nil {
		a.hub.Shutdown()
	}
	err := a.server.Shutdown(ctx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	a.logger.Info("server stopped", nil)
	return nil
}

// Close 释放资源，CLI 子命令使用
func (a *App) Close() {
	a.cleanup()
}

// cleanup 逆序关闭资源
func (a *App) cleanup() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", utils.Fields{"error": err.Error()})
		}
	}
	a.closers = nil
}

func (a *App) GetConfig() *config.Config {
	return a.config
}

func (a *App) Container() *di.Container {
	return a.container
}

func (a *App) Router() http.Handler {
	return a.router
}

// IsDebugMode 无配置时返回 false
func (a *App) IsDebugMode() bool {
	return a != nil && a.config != nil && a.config.DebugMode
}
