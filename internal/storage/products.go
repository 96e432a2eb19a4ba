// internal/storage/products.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Corphon/PersonaMarket/internal/models"
)

func (db *DB) CreateProduct(ctx context.Context, p *models.Product) error {
	_, err := db.conn.NamedExecContext(ctx, `INSERT INTO products
		(id, artisan_id, name, description, enriched_description, description_provenance, price, stock_quantity,
		 category, materials, cultural_significance, status, created_at, updated_at)
		VALUES (:id, :artisan_id, :name, :description, :enriched_description, :description_provenance, :price, :stock_quantity,
		 :category, :materials, :cultural_significance, :status, :created_at, :updated_at)`, p)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (db *DB) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := db.conn.GetContext(ctx, &p, `SELECT * FROM products WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateProductStatus 更新状态；商品不存在返回 ErrNotFound
func (db *DB) UpdateProductStatus(ctx context.Context, id string, status models.ProductStatus) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE products SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListProductsByArtisan(ctx context.Context, artisanID string) ([]models.Product, error) {
	var list []models.Product
	err := db.conn.SelectContext(ctx, &list,
		`SELECT * FROM products WHERE artisan_id = ? ORDER BY created_at DESC, id`, artisanID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListPublished 已上架商品分页，返回当页数据与总数
func (db *DB) ListPublished(ctx context.Context, limit, offset int) ([]models.ProductListing, int, error) {
	var total int
	if err := db.conn.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM products WHERE status = ?`, string(models.ProductStatusPublished)); err != nil {
		return nil, 0, err
	}

	var list []models.ProductListing
	err := db.conn.SelectContext(ctx, &list, `
		SELECT p.*, a.name AS artisan_name, a.craft_type AS artisan_craft
		FROM products p JOIN artisans a ON a.id = p.artisan_id
		WHERE p.status = ?
		ORDER BY p.created_at DESC, p.id
		LIMIT ? OFFSET ?`, string(models.ProductStatusPublished), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
