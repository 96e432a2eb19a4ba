package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/Corphon/PersonaMarket/internal/api"
	"github.com/Corphon/PersonaMarket/internal/config"
	"github.com/Corphon/PersonaMarket/internal/di"
	"github.com/Corphon/PersonaMarket/internal/services"
	"github.com/Corphon/PersonaMarket/internal/utils"
)

// mockServer 记录 Shutdown 调用
type mockServer struct {
	ShutdownCalled bool
	started        chan struct{}
}

func (m *mockServer) ListenAndServe() error {
	close(m.started)
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	m.ShutdownCalled = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:                   "0",
		LogLevel:               "error",
		DataDir:                filepath.Join(dir, "data"),
		LogDir:                 filepath.Join(dir, "logs"),
		DatabasePath:           filepath.Join(dir, "data", "persona.db"),
		LLMProvider:            "google",
		LLMTimeout:             time.Second,
		APIRateLimitPerHour:    100,
		GenerateLimitPerMinute: 30,
	}
}

func TestInitialize(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, utils.NewLogger(nil, utils.ERROR))
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer a.Close()

	for _, name := range []string{di.ServiceConfig, di.ServicePersona, di.ServiceMarketplace, di.ServiceStats, di.ServiceStorage, di.ServiceRateLimit} {
		if !a.Container().Has(name) {
			t.Errorf("service %q not registered", name)
		}
	}
	if _, err := di.Resolve[*api.MemoryRateLimiter](a.Container(), di.ServiceRateLimit); err != nil {
		t.Fatalf("expected in-memory limiter without REDIS_URL: %v", err)
	}

	// 未配置密钥时生成后端不可用，但服务仍可响应
	ps, _ := di.Resolve[*services.PersonaService](a.Container(), di.ServicePersona)
	if status, _ := ps.BackendStatus(); status.Available {
		t.Fatal("backend should be unavailable without keys")
	}

	files, _ := os.ReadDir(cfg.LogDir)
	if len(files) == 0 {
		t.Error("log file should have been created")
	}

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
}

func TestRedisFallbackToMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1/0"
	a := New(cfg, utils.NewLogger(nil, utils.ERROR))
	if err := a.InitServices(context.Background()); err != nil {
		t.Fatalf("InitServices: %v", err)
	}
	defer a.Close()

	if _, err := di.Resolve[*api.MemoryRateLimiter](a.Container(), di.ServiceRateLimit); err != nil {
		t.Fatalf("unreachable redis should fall back to memory: %v", err)
	}
}

func TestRun(t *testing.T) {
	a := New(testConfig(t), utils.NewLogger(nil, utils.ERROR))
	srv := &mockServer{started: make(chan struct{})}
	a.server = srv

	go func() {
		<-srv.started
		a.stopChan <- syscall.SIGTERM
	}()

	if err := a.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !srv.ShutdownCalled {
		t.Error("server.Shutdown should have been called")
	}
}

func TestRunRequiresInitialize(t *testing.T) {
	if err := New(testConfig(t), nil).Run(); err == nil {
		t.Fatal("Run without Initialize should fail")
	}
}

func TestIsDebugMode(t *testing.T) {
	var nilApp *App
	if nilApp.IsDebugMode() {
		t.Error("nil app should not be in debug mode")
	}
	if (&App{}).IsDebugMode() {
		t.Error("app without config should not be in debug mode")
	}
	a := &App{config: &config.Config{DebugMode: true}}
	if !a.IsDebugMode() {
		t.Error("debug mode should be reported")
	}
}
