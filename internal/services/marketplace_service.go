// internal/services/marketplace_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	apperrors "github.com/Corphon/PersonaMarket/internal/errors"
	"github.com/Corphon/PersonaMarket/internal/models"
	"github.com/Corphon/PersonaMarket/internal/persona"
	"github.com/Corphon/PersonaMarket/internal/storage"
	"github.com/Corphon/PersonaMarket/internal/utils"
)

// MarketplaceStore 市场服务依赖的持久化操作
type MarketplaceStore interface {
	CreateArtisan(ctx context.Context, a *models.Artisan) error
	GetArtisan(ctx context.Context, id string) (*models.Artisan, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	UpdateProductStatus(ctx context.Context, id string, status models.ProductStatus) error
	ListProductsByArtisan(ctx context.Context, artisanID string) ([]models.Product, error)
	ListPublished(ctx context.Context, limit, offset int) ([]models.ProductListing, int, error)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	currencySymbol  = "₹"
)

// PersonaInput 请求中的人设参数，均可缺省
type PersonaInput struct {
	Tone               string `json:"tone"`
	Style              string `json:"style"`
	StorytellingDepth  int    `json:"storytelling_depth"`
	CommunicationStyle string `json:"communication_style"`
	LanguagePreference string `json:"language_preference"`
}

// Parameters 转换为合成参数（已做默认值与深度截断）
func (in PersonaInput) Parameters() persona.PersonaParameters {
	return persona.NewPersonaParameters(in.Tone, in.Style, in.StorytellingDepth, in.CommunicationStyle, in.LanguagePreference)
}

type CreateArtisanInput struct {
	Name               string       `json:"name"`
	CraftType          string       `json:"craft_type"`
	Location           string       `json:"location"`
	ExperienceYears    int          `json:"experience_years"`
	CulturalBackground string       `json:"cultural_background"`
	CraftHistory       string       `json:"craft_history"`
	Persona            PersonaInput `json:"persona"`
}

type CreateProductInput struct {
	ArtisanID            string  `json:"artisan_id"`
	Name                 string  `json:"name"`
	Description          string  `json:"description"`
	Price                float64 `json:"price"`
	StockQuantity        *int    `json:"stock_quantity,omitempty"`
	Category             string  `json:"category"`
	Materials            string  `json:"materials"`
	CulturalSignificance string  `json:"cultural_significance"`
}

// MarketplacePage 市场列表分页结果
type MarketplacePage struct {
	Items    []models.ProductListing `json:"items"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
}

// SeedResult 导入统计
type SeedResult struct {
	Artisans int `json:"artisans"`
	Products int `json:"products"`
}

// MarketplaceService 工匠入驻、商品管理与市场列表
type MarketplaceService struct {
	store   MarketplaceStore
	persona *PersonaService
	logger  *utils.Logger
	now     func() time.Time
}

func NewMarketplaceService(store MarketplaceStore, personaService *PersonaService, logger *utils.Logger) *MarketplaceService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &MarketplaceService{
		store:   store,
		persona: personaService,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateArtisan 创建工匠与人设，简介使用确定性模板生成
func (s *MarketplaceService) CreateArtisan(ctx context.Context, in CreateArtisanInput) (*models.Artisan, error) {
	required := []struct{ field, value string }{
		{"name", in.Name},
		{"craft_type", in.CraftType},
		{"location", in.Location},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, apperrors.NewValidationError(r.field, r.field+" is required")
		}
	}
	if in.ExperienceYears < 0 {
		return nil, apperrors.NewValidationError("experience_years", "experience_years must not be negative")
	}

	params := in.Persona.Parameters()
	facts := persona.EntityFacts{
		Name:            strings.TrimSpace(in.Name),
		CraftType:       strings.TrimSpace(in.CraftType),
		Location:        strings.TrimSpace(in.Location),
		ExperienceYears: in.ExperienceYears,
	}
	bio := s.persona.PreviewBio(facts, params)

	now := s.now()
	artisan := &models.Artisan{
		ID:                 uuid.NewString(),
		Name:               facts.Name,
		CraftType:          facts.CraftType,
		Location:           facts.Location,
		ExperienceYears:    in.ExperienceYears,
		CulturalBackground: in.CulturalBackground,
		CraftHistory:       in.CraftHistory,
		Bio:                bio.Text,
		CreatedAt:          now,
		Persona: &models.ArtisanPersona{
			Tone:               params.Tone.String(),
			Style:              params.Style,
			StorytellingDepth:  params.StorytellingDepth,
			CommunicationStyle: params.CommunicationStyle,
			LanguagePreference: params.LanguagePreference,
			GeneratedBio:       bio.Text,
			Provenance:         string(bio.Provenance),
			CreatedAt:          now,
		},
	}

	if err := s.store.CreateArtisan(ctx, artisan); err != nil {
		return nil, apperrors.NewStorageError("failed to save artisan", err)
	}
	s.logger.Info("artisan created", utils.Fields{"artisan_id": artisan.ID, "tone": artisan.Persona.Tone})
	return artisan, nil
}

func (s *MarketplaceService) GetArtisan(ctx context.Context, id string) (*models.Artisan, error) {
	artisan, err := s.store.GetArtisan(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "artisan not found", "failed to load artisan")
	}
	return artisan, nil
}

func (s *MarketplaceService) ListArtisanProducts(ctx context.Context, artisanID string) ([]models.Product, error) {
	if _, err := s.GetArtisan(ctx, artisanID); err != nil {
		return nil, err
	}
	products, err := s.store.ListProductsByArtisan(ctx, artisanID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list products", err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// CreateProduct 新商品以 draft 状态保存，并附带人设语气的增强描述
func (s *MarketplaceService) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	if strings.TrimSpace(in.ArtisanID) == "" {
		return nil, apperrors.NewValidationError("artisan_id", "artisan_id is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.NewValidationError("name", "Name is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, apperrors.NewValidationError("description", "Description is required")
	}
	if in.Price <= 0 {
		return nil, apperrors.NewValidationError("price", "Price is required")
	}
	stock := 1
	if in.StockQuantity != nil {
		if *in.StockQuantity < 0 {
			return nil, apperrors.NewValidationError("stock_quantity", "stock_quantity must not be negative")
		}
		stock = *in.StockQuantity
	}

	artisan, err := s.GetArtisan(ctx, in.ArtisanID)
	if err != nil {
		return nil, err
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = artisan.CraftType
	}

	tone := persona.ToneWarm
	if artisan.Persona != nil {
		tone = persona.ParseToneOr(artisan.Persona.Tone, persona.ToneWarm)
	}
	enriched := s.persona.GenerateProductDescription(ctx, persona.EntityFacts{
		Name:                 in.Name,
		CraftType:            artisan.CraftType,
		Location:             artisan.Location,
		Category:             category,
		Materials:            in.Materials,
		BaseDescription:      in.Description,
		CulturalSignificance: in.CulturalSignificance,
	}, tone)

	now := s.now()
	product := &models.Product{
		ID:                    uuid.NewString(),
		ArtisanID:             artisan.ID,
		Name:                  strings.TrimSpace(in.Name),
		Description:           in.Description,
		EnrichedDescription:   enriched.Text,
		DescriptionProvenance: string(enriched.Provenance),
		Price:                 in.Price,
		StockQuantity:         stock,
		Category:              category,
		Materials:             in.Materials,
		CulturalSignificance:  in.CulturalSignificance,
		Status:                models.ProductStatusDraft,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, apperrors.NewStorageError("failed to save product", err)
	}

	s.logger.Info("product created", utils.Fields{
		"product_id": product.ID,
		"artisan_id": artisan.ID,
		"provenance": product.DescriptionProvenance,
	})
	return product, nil
}

// UpdateProductStatus 状态只允许 draft / published / sold_out
func (s *MarketplaceService) UpdateProductStatus(ctx context.Context, productID, status string) (*models.Product, error) {
	st, err := models.ParseProductStatus(status)
	if err != nil {
		return nil, apperrors.NewValidationError("status", "Invalid status")
	}
	if err := s.store.UpdateProductStatus(ctx, productID, st); err != nil {
		return nil, notFoundOr(err, "product not found", "failed to update product")
	}
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "failed to load product")
	}
	return product, nil
}

// ListMarketplace 已上架商品，page 从 1 开始
func (s *MarketplaceService) ListMarketplace(ctx context.Context, page, pageSize int) (*MarketplacePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	items, total, err := s.store.ListPublished(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list marketplace", err)
	}
	now := s.now()
	for i := range items {
		items[i].DisplayPrice = FormatPrice(items[i].Price)
		items[i].ListedRelative = humanize.RelTime(items[i].CreatedAt, now, "ago", "from now")
	}
	if items == nil {
		items = []models.ProductListing{}
	}
	return &MarketplacePage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// FormatPrice 例如 ₹1,850.00
func FormatPrice(price float64) string {
	total := int64(math.Round(price * 100))
	return fmt.Sprintf("%s%s.%02d", currencySymbol, humanize.Comma(total/100), total%100)
}

// Seed 导入示例数据；简介按人设确定性生成，商品描述走完整的增强流程
func (s *MarketplaceService) Seed(ctx context.Context, seed *storage.SeedFile) (SeedResult, error) {
	var result SeedResult
	for _, sa := range seed.Artisans {
		artisan, err := s.CreateArtisan(ctx, CreateArtisanInput{
			Name:               sa.Name,
			CraftType:          sa.CraftType,
			Location:           sa.Location,
			ExperienceYears:    sa.ExperienceYears,
			CulturalBackground: sa.CulturalBackground,
			CraftHistory:       sa.CraftHistory,
			Persona: PersonaInput{
				Tone:               sa.Persona.Tone,
				Style:              sa.Persona.Style,
				StorytellingDepth:  sa.Persona.StorytellingDepth,
				CommunicationStyle: sa.Persona.CommunicationStyle,
				LanguagePreference: sa.Persona.LanguagePreference,
			},
		})
		if err != nil {
			return result, fmt.Errorf("seed artisan %q: %w", sa.Name, err)
		}
		result.Artisans++

		for _, sp := range sa.Products {
			var stock *int
			if sp.StockQuantity > 0 {
				q := sp.StockQuantity
				stock = &q
			}
			product, err := s.CreateProduct(ctx, CreateProductInput{
				ArtisanID:            artisan.ID,
				Name:                 sp.Name,
				Description:          sp.Description,
				Price:                sp.Price,
				StockQuantity:        stock,
				Category:             sp.Category,
				Materials:            sp.Materials,
				CulturalSignificance: sp.CulturalSignificance,
			})
			if err != nil {
				return result, fmt.Errorf("seed product %q: %w", sp.Name, err)
			}
			if sp.Status != "" && sp.Status != string(models.ProductStatusDraft) {
				if _, err := s.UpdateProductStatus(ctx, product.ID, sp.Status); err != nil {
					return result, fmt.Errorf("seed product %q: %w", sp.Name, err)
				}
			}
			result.Products++
		}
	}
	s.logger.Info("seed data imported", utils.Fields{"artisans": result.Artisans, "products": result.Products})
	return result, nil
}

func notFoundOr(err error, notFoundMsg, otherMsg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewNotFoundError(notFoundMsg, err)
	}
	return apperrors.NewStorageError(otherMsg, err)
}
