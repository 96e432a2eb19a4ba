// internal/api/handlers.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/PersonaMarket/internal/llm"
	"github.com/Corphon/PersonaMarket/internal/persona"
	"github.com/Corphon/PersonaMarket/internal/services"
	"github.com/Corphon/PersonaMarket/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	Persona     *services.PersonaService     // 合成服务
	Marketplace *services.MarketplaceService // 工匠与商品
	Stats       *services.StatsService       // 统计服务
	Response    *ResponseHelper              // 响应助手
	Logger      *utils.Logger
	HealthCheck func(ctx context.Context) error // 可为空
}

// NewHandler 创建处理器
func NewHandler(personaService *services.PersonaService, marketplace *services.MarketplaceService,
	stats *services.StatsService, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Handler{
		Persona:     personaService,
		Marketplace: marketplace,
		Stats:       stats,
		Response:    NewResponseHelper(),
		Logger:      logger,
	}
}

// PersonaRequest 主体事实与人设参数平铺在同一个 JSON 对象中
type PersonaRequest struct {
	persona.EntityFacts
	services.PersonaInput
}

// StoryTitleRequest 生成故事标题
type StoryTitleRequest struct {
	persona.EntityFacts
	Tone string `json:"tone"`
}

// ProductDescriptionRequest 生成商品描述
type ProductDescriptionRequest struct {
	persona.EntityFacts
	Description string `json:"description"`
	Tone        string `json:"tone"`
}

// CulturalContextRequest 工艺文化背景
type CulturalContextRequest struct {
	CraftType string `json:"craft_type"`
	Location  string `json:"location"`
}

// ProductBundlesRequest 商品组合建议
type ProductBundlesRequest struct {
	Products []persona.EntityFacts `json:"products"`
	Theme    string                `json:"theme"`
}

// TranslateRequest 翻译请求；text 必须出现，可以为空串
type TranslateRequest struct {
	Text           *string `json:"text"`
	TargetLanguage string  `json:"target_language"`
	SourceLanguage string  `json:"source_language"`
}

// UpdateStatusRequest 商品状态变更
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// PreviewResponse 预览结果附带分段
type PreviewResponse struct {
	persona.GeneratedText
	Fragments []persona.Fragment        `json:"fragments"`
	Persona   persona.PersonaParameters `json:"persona"`
}

// MarketingResponse 营销文案，type 回显内容类型
type MarketingResponse struct {
	persona.GeneratedText
	Type string `json:"type"`
}

// LLMStatusResponse 生成后端与翻译状态
type LLMStatusResponse struct {
	Backend              llm.BackendStatus `json:"backend"`
	TranslationAvailable bool              `json:"translation_available"`
}

// bind 解析请求体，失败时写入 400
func (h *Handler) bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Response.PayloadTooLarge(c, tooLarge.Limit)
			return false
		}
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return false
	}
	return true
}

// PreviewPersona 仅使用模板的确定性预览
func (h *Handler) PreviewPersona(c *gin.Context) {
	var req PersonaRequest
	if !h.bind(c, &req) {
		return
	}
	p := req.PersonaInput.Parameters()
	h.Response.Success(c, PreviewResponse{
		GeneratedText: h.Persona.PreviewBio(req.EntityFacts, p),
		Fragments:     h.Persona.PreviewFragments(req.EntityFacts, p),
		Persona:       p,
	})
}

// GenerateArtisanBio 默认语气 warm
func (h *Handler) GenerateArtisanBio(c *gin.Context) {
	var req PersonaRequest
	if !h.bind(c, &req) {
		return
	}
	in := req.PersonaInput
	if in.Tone == "" {
		in.Tone = persona.ToneWarm.String()
	}
	h.Response.Success(c, h.Persona.GenerateArtisanBio(c.Request.Context(), req.EntityFacts, in.Parameters()))
}

// GenerateStoryTitle 默认语气 poetic
func (h *Handler) GenerateStoryTitle(c *gin.Context) {
	var req StoryTitleRequest
	if !h.bind(c, &req) {
		return
	}
	tone := persona.ParseToneOr(req.Tone, persona.TonePoetic)
	h.Response.Success(c, h.Persona.GenerateStoryTitle(c.Request.Context(), req.EntityFacts, tone))
}

// GenerateProductDescription 默认语气 warm
func (h *Handler) GenerateProductDescription(c *gin.Context) {
	var req ProductDescriptionRequest
	if !h.bind(c, &req) {
		return
	}
	facts := req.EntityFacts
	if facts.BaseDescription == "" {
		facts.BaseDescription = req.Description
	}
	tone := persona.ParseToneOr(req.Tone, persona.ToneWarm)
	h.Response.Success(c, h.Persona.GenerateProductDescription(c.Request.Context(), facts, tone))
}

func (h *Handler) GenerateCulturalContext(c *gin.Context) {
	var req CulturalContextRequest
	if !h.bind(c, &req) {
		return
	}
	h.Response.Success(c, h.Persona.GenerateCulturalContext(c.Request.Context(), req.CraftType, req.Location))
}

func (h *Handler) GenerateMarketingContent(c *gin.Context) {
	var req services.MarketingRequest
	if !h.bind(c, &req) {
		return
	}
	if req.ContentType == "" {
		req.ContentType = services.ContentTypeSocialMedia
	}
	h.Response.Success(c, MarketingResponse{
		GeneratedText: h.Persona.GenerateMarketingContent(c.Request.Context(), req),
		Type:          req.ContentType,
	})
}

// GenerateProductBundles 主题默认 complementary
func (h *Handler) GenerateProductBundles(c *gin.Context) {
	var req ProductBundlesRequest
	if !h.bind(c, &req) {
		return
	}
	h.Response.Success(c, h.Persona.GenerateProductBundles(c.Request.Context(), req.Products, req.Theme))
}

// Translate 翻译失败时原文返回，provenance 为 template-fallback
func (h *Handler) Translate(c *gin.Context) {
	var req TranslateRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Text == nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorBadRequest, "text is required")
		return
	}
	h.Response.Success(c, h.Persona.Translate(c.Request.Context(), *req.Text, req.TargetLanguage, req.SourceLanguage))
}

// CreateArtisan 创建工匠及人设
func (h *Handler) CreateArtisan(c *gin.Context) {
	var req services.CreateArtisanInput
	if !h.bind(c, &req) {
		return
	}
	artisan, err := h.Marketplace.CreateArtisan(c.Request.Context(), req)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, artisan, "artisan profile created")
}

func (h *Handler) GetArtisan(c *gin.Context) {
	artisan, err := h.Marketplace.GetArtisan(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, artisan)
}

func (h *Handler) ListArtisanProducts(c *gin.Context) {
	products, err := h.Marketplace.ListArtisanProducts(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, products)
}

// CreateProduct 创建商品，描述经过增强
func (h *Handler) CreateProduct(c *gin.Context) {
	var req services.CreateProductInput
	if !h.bind(c, &req) {
		return
	}
	product, err := h.Marketplace.CreateProduct(c.Request.Context(), req)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, product, "product created")
}

func (h *Handler) UpdateProductStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if !h.bind(c, &req) {
		return
	}
	product, err := h.Marketplace.UpdateProductStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, product, "status updated")
}

// ListMarketplace GET /api/marketplace?page=1&page_size=20
func (h *Handler) ListMarketplace(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(services.DefaultPageSize)))

	result, err := h.Marketplace.ListMarketplace(c.Request.Context(), page, pageSize)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}

	totalPages := 0
	if result.PageSize > 0 {
		totalPages = (result.Total + result.PageSize - 1) / result.PageSize
	}
	h.Response.PaginatedSuccess(c, result.Items, &PaginationMeta{
		Page:       result.Page,
		PerPage:    result.PageSize,
		Total:      result.Total,
		TotalPages: totalPages,
	})
}

// LLMStatus 生成后端状态
func (h *Handler) LLMStatus(c *gin.Context) {
	backend, translation := h.Persona.BackendStatus()
	h.Response.Success(c, LLMStatusResponse{Backend: backend, TranslationAvailable: translation})
}

// GetStats GET /api/stats?verbose=true
func (h *Handler) GetStats(c *gin.Context) {
	verbose, _ := strconv.ParseBool(c.Query("verbose"))
	h.Response.Success(c, h.Stats.GetStats(c.Request.Context(), verbose))
}

// Health 存活检查；数据库不可用时返回 503
func (h *Handler) Health(c *gin.Context) {
	backend, translation := h.Persona.BackendStatus()
	body := gin.H{
		"status":                "ok",
		"generative_available":  backend.Available,
		"translation_available": translation,
		"time":                  time.Now().Format(time.RFC3339),
	}
	if h.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.HealthCheck(ctx); err != nil {
			h.Logger.Error("health check failed", utils.Fields{"error": err.Error()})
			body["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}
