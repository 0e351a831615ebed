// Package database はデータベース接続・マイグレーション・スキーマ保証を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// articlesSchemaFile は記事テーブルを作るマイグレーション。
// CREATE TABLE IF NOT EXISTSで書かれているため、スキーマ保証からもそのまま実行できる。
const articlesSchemaFile = "migrations/000001_create_articles.up.sql"

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用する。最新の場合はエラーなしで返る。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// articlesSchemaSQL は記事テーブル作成SQLを返す。
func articlesSchemaSQL() (string, error) {
	b, err := migrationsFS.ReadFile(articlesSchemaFile)
	if err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	return string(b), nil
}
