// internal/models/product.go
package models

import (
	"fmt"
	"time"
)

type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusPublished ProductStatus = "published"
	ProductStatusSoldOut   ProductStatus = "sold_out"
)

// ParseProductStatus 只接受 draft / published / sold_out
func ParseProductStatus(s string) (ProductStatus, error) {
	switch st := ProductStatus(s); st {
	case ProductStatusDraft, ProductStatusPublished, ProductStatusSoldOut:
		return st, nil
	default:
		return "", fmt.Errorf("invalid product status %q", s)
	}
}

type Product struct {
	ID                    string        `json:"id" db:"id"`
	ArtisanID             string        `json:"artisan_id" db:"artisan_id"`
	Name                  string        `json:"name" db:"name"`
	Description           string        `json:"description" db:"description"`
	EnrichedDescription   string        `json:"ai_enriched_description,omitempty" db:"enriched_description"`
	DescriptionProvenance string        `json:"description_provenance,omitempty" db:"description_provenance"`
	Price                 float64       `json:"price" db:"price"`
	StockQuantity         int           `json:"stock_quantity" db:"stock_quantity"`
	Category              string        `json:"category" db:"category"`
	Materials             string        `json:"materials,omitempty" db:"materials"`
	CulturalSignificance  string        `json:"cultural_significance,omitempty" db:"cultural_significance"`
	Status                ProductStatus `json:"status" db:"status"`
	CreatedAt             time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at" db:"updated_at"`
}

// ProductListing 市场列表项，附带工匠名与格式化价格
type ProductListing struct {
	Product
	ArtisanName    string `json:"artisan_name" db:"artisan_name"`
	ArtisanCraft   string `json:"artisan_craft" db:"artisan_craft"`
	DisplayPrice   string `json:"display_price" db:"-"`
	ListedRelative string `json:"listed" db:"-"`
}
