package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/PersonaMarket/internal/config"
	"github.com/Corphon/PersonaMarket/internal/di"
	"github.com/Corphon/PersonaMarket/internal/llm"
	"github.com/Corphon/PersonaMarket/internal/persona"
	"github.com/Corphon/PersonaMarket/internal/services"
	"github.com/Corphon/PersonaMarket/internal/storage"
	"github.com/Corphon/PersonaMarket/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// echoBackend 总是成功生成固定文本
type echoBackend struct {
	mu    sync.Mutex
	text  string
	calls int
}

func (b *echoBackend) Generate(_ context.Context, _ string, _ int, _ float32) llm.Generation {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return llm.Generation{Text: b.text, Generative: true, Provider: "echo"}
}

func (b *echoBackend) Available() bool { return true }

func (b *echoBackend) Describe() llm.BackendStatus {
	return llm.BackendStatus{Available: true, Provider: "echo", Model: "echo-1"}
}

type testServer struct {
	router    *gin.Engine
	hub       *PreviewHub
	collector *utils.MetricsCollector
}

func newTestServer(t *testing.T, backend llm.TextGenerationBackend, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{Port: "0", APIRateLimitPerHour: 100, GenerateLimitPerMinute: 30}
	if mutate != nil {
		mutate(cfg)
	}

	logger := utils.NewLogger(nil, utils.ERROR)
	collector := utils.NewMetricsCollector()
	metrics := utils.NewSynthesisMetrics(collector)

	db, err := storage.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if backend == nil {
		backend = llm.NewUnavailableBackend("not configured", metrics)
	}
	personaService := services.NewPersonaService(backend, llm.NewUnavailableTranslator(metrics), logger).WithMetrics(metrics)

	container := di.NewContainer()
	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceLogger, logger)
	container.Register(di.ServiceMetrics, metrics)
	container.Register(di.ServiceStorage, db)
	container.Register(di.ServicePersona, personaService)
	container.Register(di.ServiceMarketplace, services.NewMarketplaceService(db, personaService, logger))
	container.Register(di.ServiceStats, services.NewStatsService(collector, db))

	limiter := NewMemoryRateLimiter(0)
	t.Cleanup(func() { limiter.Close() })
	container.Register(di.ServiceRateLimit, limiter)

	router, hub, err := SetupRouter(container)
	if err != nil {
		t.Fatalf("SetupRouter: %v", err)
	}
	t.Cleanup(hub.Shutdown)
	return &testServer{router: router, hub: hub, collector: collector}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *PaginationMeta `json:"meta"`
	RequestID string          `json:"request_id"`
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
	}
	return w, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

func TestPreviewEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w, env := s.do(t, http.MethodPost, "/api/persona/preview",
		`{"name":"Maya","craft_type":"pottery","location":"Jaipur","tone":"warm","storytelling_depth":7}`)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if env.RequestID == "" || w.Header().Get(requestIDHeader) != env.RequestID {
		t.Fatalf("request id not propagated: %q / %q", env.RequestID, w.Header().Get(requestIDHeader))
	}

	got := decodeData[PreviewResponse](t, env)
	if !strings.HasPrefix(got.Text, "Welcome to my world!") || got.Provenance != persona.ProvenanceTemplateFallback {
		t.Fatalf("unexpected preview: %+v", got.GeneratedText)
	}
	if len(got.Fragments) != 4 || got.Persona.StorytellingDepth != 7 {
		t.Fatalf("fragments = %d, persona = %+v", len(got.Fragments), got.Persona)
	}
}

func TestRequestIDIsReused(t *testing.T) {
	s := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/llm/status", nil)
	req.Header.Set(requestIDHeader, "trace-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Header().Get(requestIDHeader) != "trace-42" {
		t.Fatalf("request id = %q", w.Header().Get(requestIDHeader))
	}
}

func TestGenerateEndpointsWithoutBackend(t *testing.T) {
	s := newTestServer(t, nil, nil)

	cases := []struct {
		path, body, tone string
		want             string
	}{
		{"/api/generate/artisan-bio", `{"name":"Maya","craft_type":"pottery"}`, "warm", llm.FallbackArtisanBio},
		{"/api/generate/story-title", `{"craft_type":"pottery"}`, "poetic", llm.FallbackStoryTitle},
		{"/api/generate/product-description", `{"name":"Vase","description":"Blue"}`, "warm", llm.FallbackProductDescription},
		{"/api/generate/cultural-context", `{"craft_type":"pottery","location":"Jaipur"}`, "", llm.FallbackDefault},
	}
	for _, tc := range cases {
		w, env := s.do(t, http.MethodPost, tc.path, tc.body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tc.path, w.Code)
		}
		got := decodeData[persona.GeneratedText](t, env)
		if got.Text != tc.want || got.Provenance != persona.ProvenanceTemplateFallback || got.Tone != tc.tone {
			t.Errorf("%s: %+v", tc.path, got)
		}
	}

	_, env := s.do(t, http.MethodPost, "/api/generate/marketing-content", `{"type":"email"}`)
	m := decodeData[MarketingResponse](t, env)
	if m.Type != services.ContentTypeEmail || m.Text != llm.FallbackMarketing {
		t.Fatalf("marketing = %+v", m)
	}

	_, env = s.do(t, http.MethodGet, "/api/stats", "")
	stats := decodeData[services.UsageStats](t, env)
	if stats.Generation.Fallback != 5 || stats.Generation.Generative != 0 || stats.Generation.FallbackRate != 1 {
		t.Fatalf("stats = %+v", stats.Generation)
	}
}

func TestGenerateWithBackend(t *testing.T) {
	backend := &echoBackend{text: "I shape Jaipur clay."}
	s := newTestServer(t, backend, nil)

	_, env := s.do(t, http.MethodPost, "/api/generate/artisan-bio", `{"name":"Maya","tone":"formal"}`)
	got := decodeData[persona.GeneratedText](t, env)
	if got.Text != backend.text || got.Provenance != persona.ProvenanceGenerative || got.Tone != "formal" {
		t.Fatalf("bio = %+v", got)
	}

	_, env = s.do(t, http.MethodGet, "/api/llm/status", "")
	status := decodeData[LLMStatusResponse](t, env)
	if !status.Backend.Available || status.Backend.Provider != "echo" || status.TranslationAvailable {
		t.Fatalf("status = %+v", status)
	}
}

func TestMalformedJSON(t *testing.T) {
	s := newTestServer(t, nil, nil)
	w, env := s.do(t, http.MethodPost, "/api/generate/artisan-bio", `{"name":`)
	if w.Code != http.StatusBadRequest || env.Success || env.Error == nil || env.Error.Code != ErrorBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestTranslateIdentityWhenUnavailable(t *testing.T) {
	s := newTestServer(t, nil, nil)

	_, env := s.do(t, http.MethodPost, "/api/translate", `{"text":"Handmade with love","target_language":"fr"}`)
	got := decodeData[persona.GeneratedText](t, env)
	if got.Text != "Handmade with love" || got.Provenance != persona.ProvenanceTemplateFallback || got.TargetLanguage != "fr" {
		t.Fatalf("translate = %+v", got)
	}

	w, _ := s.do(t, http.MethodPost, "/api/translate", `{"target_language":"fr"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing text should be rejected, got %d", w.Code)
	}
}

func TestArtisanAndProductFlow(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w, env := s.do(t, http.MethodPost, "/api/artisans",
		`{"name":"Maya","craft_type":"pottery","location":"Jaipur","persona":{"tone":"warm","storytelling_depth":7}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create artisan: %d %s", w.Code, w.Body.String())
	}
	artisan := decodeData[struct {
		ID      string `json:"id"`
		Bio     string `json:"bio"`
		Persona struct {
			Tone string `json:"tone"`
		} `json:"persona"`
	}](t, env)
	if artisan.ID == "" || !strings.HasPrefix(artisan.Bio, "Welcome to my world!") || artisan.Persona.Tone != "warm" {
		t.Fatalf("artisan = %+v", artisan)
	}

	w, env = s.do(t, http.MethodPost, "/api/artisans", `{"name":"Maya","location":"Jaipur"}`)
	if w.Code != http.StatusBadRequest || env.Error.Field != "craft_type" {
		t.Fatalf("missing craft: %d %s", w.Code, w.Body.String())
	}

	w, env = s.do(t, http.MethodGet, "/api/artisans/nope", "")
	if w.Code != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("missing artisan: %d %s", w.Code, w.Body.String())
	}

	w, env = s.do(t, http.MethodPost, "/api/products",
		`{"artisan_id":"`+artisan.ID+`","name":"Blue Vase","description":"Cobalt glaze"}`)
	if w.Code != http.StatusBadRequest || env.Error.Field != "price" {
		t.Fatalf("missing price: %d %s", w.Code, w.Body.String())
	}

	w, env = s.do(t, http.MethodPost, "/api/products",
		`{"artisan_id":"`+artisan.ID+`","name":"Blue Vase","description":"Cobalt glaze","price":1850}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create product: %d %s", w.Code, w.Body.String())
	}
	product := decodeData[struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Enriched string `json:"ai_enriched_description"`
	}](t, env)
	if product.Status != "draft" || product.Enriched == "" {
		t.Fatalf("product = %+v", product)
	}

	w, _ = s.do(t, http.MethodPut, "/api/products/"+product.ID+"/status", `{"status":"archived"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPut, "/api/products/missing/status", `{"status":"published"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing product: %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPut, "/api/products/"+product.ID+"/status", `{"status":"published"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("publish: %d", w.Code)
	}

	_, env = s.do(t, http.MethodGet, "/api/artisans/"+artisan.ID+"/products", "")
	if products := decodeData[[]json.RawMessage](t, env); len(products) != 1 {
		t.Fatalf("artisan products = %d", len(products))
	}

	_, env = s.do(t, http.MethodGet, "/api/marketplace?page=1&page_size=10", "")
	if env.Meta == nil || env.Meta.Total != 1 || env.Meta.TotalPages != 1 || env.Meta.PerPage != 10 {
		t.Fatalf("meta = %+v", env.Meta)
	}
	items := decodeData[[]struct {
		ArtisanName  string `json:"artisan_name"`
		DisplayPrice string `json:"display_price"`
	}](t, env)
	if len(items) != 1 || items[0].ArtisanName != "Maya" || items[0].DisplayPrice != "₹1,850.00" {
		t.Fatalf("items = %+v", items)
	}

	_, env = s.do(t, http.MethodGet, "/api/stats", "")
	if stats := decodeData[services.UsageStats](t, env); stats.Artisans != 1 || stats.APIRequests == 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestGenerateRateLimit(t *testing.T) {
	s := newTestServer(t, nil, func(cfg *config.Config) { cfg.GenerateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		w, _ := s.do(t, http.MethodPost, "/api/generate/story-title", `{}`)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
	w, env := s.do(t, http.MethodPost, "/api/generate/story-title", `{}`)
	if w.Code != http.StatusTooManyRequests || env.Error.Code != ErrorRateLimited {
		t.Fatalf("expected 429, got %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-RateLimit-Limit") != "2" || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("headers = %v", w.Header())
	}

	// 非生成接口不受分钟级限制
	if w, _ := s.do(t, http.MethodPost, "/api/persona/preview", `{}`); w.Code != http.StatusOK {
		t.Fatalf("preview limited: %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || body["status"] != "ok" || body["generative_available"] != false {
		t.Fatalf("health = %d %v", w.Code, body)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/translate", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight = %d %v", w.Code, w.Header())
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	if got := sanitizeErrorMessage("bad API_KEY abc"); got != "An internal error occurred" {
		t.Fatalf("got %q", got)
	}
	if got := sanitizeErrorMessage("name is required"); got != "name is required" {
		t.Fatalf("got %q", got)
	}
}

func TestProductBundlesEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w, env := s.do(t, http.MethodPost, "/api/generate/product-bundles", `{"products":[
		{"name":"Blue Vase","category":"pottery"},
		{"name":"Tea Cups","category":"pottery"},
		{"name":"Indigo Scarf","category":"textiles"}]}`)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	got := decodeData[services.BundleSuggestions](t, env)
	if got.Theme != services.DefaultBundleTheme || got.Provenance != persona.ProvenanceTemplateFallback || len(got.Bundles) != 2 {
		t.Fatalf("unexpected bundles: %+v", got)
	}
	if got.Bundles[0].Name != "Pottery Collection" {
		t.Fatalf("first bundle = %+v", got.Bundles[0])
	}
}

func TestRequestBodyLimit(t *testing.T) {
	s := newTestServer(t, nil, func(cfg *config.Config) { cfg.MaxBodyBytes = 64 })
	body := `{"name":"` + strings.Repeat("x", 200) + `"}`

	// 声明了长度：中间件直接拒绝
	w, env := s.do(t, http.MethodPost, "/api/persona/preview", body)
	if w.Code != http.StatusRequestEntityTooLarge || env.Error == nil || env.Error.Code != ErrorPayloadTooLarge {
		t.Fatalf("declared length: status %d: %s", w.Code, w.Body.String())
	}

	// 未声明长度：读取时截断
	req := httptest.NewRequest(http.MethodPost, "/api/persona/preview", strings.NewReader(body))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("streamed body: status %d: %s", rec.Code, rec.Body.String())
	}

	if w, _ := s.do(t, http.MethodPost, "/api/persona/preview", `{"name":"Maya"}`); w.Code != http.StatusOK {
		t.Fatalf("small body rejected: %d", w.Code)
	}
}

func TestDefaultRateLimitStoreStartsNoGoroutine(t *testing.T) {
	cfg := &config.Config{Port: "0"}
	logger := utils.NewLogger(nil, utils.ERROR)
	metrics := utils.NewSynthesisMetrics(utils.NewMetricsCollector())
	ps := services.NewPersonaService(nil, nil, logger)

	container := di.NewContainer()
	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceLogger, logger)
	container.Register(di.ServiceMetrics, metrics)
	container.Register(di.ServicePersona, ps)
	container.Register(di.ServiceMarketplace, services.NewMarketplaceService(nil, ps, logger))
	container.Register(di.ServiceStats, services.NewStatsService(metrics.Collector(), nil))

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		_, hub, err := SetupRouter(container)
		if err != nil {
			t.Fatalf("SetupRouter: %v", err)
		}
		hub.Shutdown()
	}
	if after := runtime.NumGoroutine(); after-before >= 20 {
		t.Fatalf("router setup leaked goroutines: %d -> %d", before, after)
	}
}
