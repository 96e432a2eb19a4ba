// internal/storage/db.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// DB 工匠、人设与商品的 SQLite 存储
type DB struct {
	conn *sqlx.DB
}

// Open 打开（或创建）数据库并执行迁移
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// sqlite 单写者
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping 健康检查
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate 建表，可重复执行
func (db *DB) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS artisans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		craft_type TEXT NOT NULL,
		location TEXT NOT NULL,
		experience_years INTEGER NOT NULL DEFAULT 0,
		cultural_background TEXT NOT NULL DEFAULT '',
		craft_history TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS personas (
		artisan_id TEXT PRIMARY KEY REFERENCES artisans(id) ON DELETE CASCADE,
		tone TEXT NOT NULL,
		style TEXT NOT NULL,
		storytelling_depth INTEGER NOT NULL,
		communication_style TEXT NOT NULL,
		language_preference TEXT NOT NULL,
		generated_bio TEXT NOT NULL,
		provenance TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		artisan_id TEXT NOT NULL REFERENCES artisans(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		enriched_description TEXT NOT NULL DEFAULT '',
		description_provenance TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL,
		stock_quantity INTEGER NOT NULL DEFAULT 1,
		category TEXT NOT NULL DEFAULT '',
		materials TEXT NOT NULL DEFAULT '',
		cultural_significance TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_artisan ON products(artisan_id);
	CREATE INDEX IF NOT EXISTS idx_products_status ON products(status);
	`
	_, err := db.conn.ExecContext(ctx, schema)
	return err
}
