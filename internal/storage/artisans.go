// internal/storage/artisans.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Corphon/PersonaMarket/internal/models"
)

// CreateArtisan 在一个事务内写入工匠及其人设
func (db *DB) CreateArtisan(ctx context.Context, a *models.Artisan) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `INSERT INTO artisans
		(id, name, craft_type, location, experience_years, cultural_background, craft_history, bio, created_at)
		VALUES (:id, :name, :craft_type, :location, :experience_years, :cultural_background, :craft_history, :bio, :created_at)`, a); err != nil {
		return fmt.Errorf("insert artisan: %w", err)
	}

	if a.Persona != nil {
		a.Persona.ArtisanID = a.ID
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO personas
			(artisan_id, tone, style, storytelling_depth, communication_style, language_preference, generated_bio, provenance, created_at)
			VALUES (:artisan_id, :tone, :style, :storytelling_depth, :communication_style, :language_preference, :generated_bio, :provenance, :created_at)`, a.Persona); err != nil {
			return fmt.Errorf("insert persona: %w", err)
		}
	}
	return tx.Commit()
}

// GetArtisan 读取工匠，人设存在时一并返回
func (db *DB) GetArtisan(ctx context.Context, id string) (*models.Artisan, error) {
	var a models.Artisan
	if err := db.conn.GetContext(ctx, &a, `SELECT * FROM artisans WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var p models.ArtisanPersona
	err := db.conn.GetContext(ctx, &p, `SELECT * FROM personas WHERE artisan_id = ?`, id)
	switch {
	case err == nil:
		a.Persona = &p
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}
	return &a, nil
}

// ListArtisans 按创建时间排序
func (db *DB) ListArtisans(ctx context.Context) ([]models.Artisan, error) {
	var list []models.Artisan
	if err := db.conn.SelectContext(ctx, &list, `SELECT * FROM artisans ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	return list, nil
}

// CountArtisans 工匠总数
func (db *DB) CountArtisans(ctx context.Context) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM artisans`)
	return n, err
}
