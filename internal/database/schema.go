package database

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaGuard は記事テーブルが存在することを保証する。
// シート側の「ヘッダー行がなければ作る」処理に相当し、読み書きの前提条件として呼ばれる。
type SchemaGuard struct {
	db *sql.DB
}

// NewSchemaGuard はSchemaGuardを生成する。
func NewSchemaGuard(db *sql.DB) *SchemaGuard {
	return &SchemaGuard{db: db}
}

// EnsureSchema は記事テーブルを作成する。既に存在する場合は何もしない。
func (g *SchemaGuard) EnsureSchema(ctx context.Context) error {
	ddl, err := articlesSchemaSQL()
	if err != nil {
		return err
	}
	if _, err := g.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("記事テーブルの作成に失敗しました: %w", err)
	}
	return nil
}
