package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/intelnews/internal/model"
)

// pgUndefinedTable はテーブルが存在しないことを示すPostgreSQLのエラーコード。
const pgUndefinedTable = "42P01"

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// Append は記事を末尾の行として追加する。
// article.Timestampはmodel.TimestampLayout形式でなければならない。
func (r *PostgresArticleRepo) Append(ctx context.Context, article *model.Article) error {
	createdAt, err := time.Parse(time.RFC3339Nano, article.Timestamp)
	if err != nil {
		return fmt.Errorf("タイムスタンプの形式が不正です: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO articles (id, created_at, title, tagline, description, image, category, is_featured, is_heading)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		article.ID, createdAt, article.Title, article.Tagline, article.Description,
		article.Image, article.Category, article.IsFeatured, article.IsHeading,
	)
	if err != nil {
		return wrapQueryError("記事の追加に失敗しました", err)
	}
	return nil
}

// ListAll は全記事を行の追加順で返す。
func (r *PostgresArticleRepo) ListAll(ctx context.Context) ([]model.Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, title, tagline, description, image, category, is_featured, is_heading
		 FROM articles ORDER BY row_num ASC`,
	)
	if err != nil {
		return nil, wrapQueryError("記事一覧の取得に失敗しました", err)
	}
	defer rows.Close()

	articles := make([]model.Article, 0)
	for rows.Next() {
		var a model.Article
		var createdAt time.Time
		if err := rows.Scan(
			&a.ID, &createdAt, &a.Title, &a.Tagline, &a.Description,
			&a.Image, &a.Category, &a.IsFeatured, &a.IsHeading,
		); err != nil {
			return nil, fmt.Errorf("記事行のスキャンに失敗しました: %w", err)
		}
		a.Timestamp = createdAt.UTC().Format(model.TimestampLayout)
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError("記事一覧の読み取りに失敗しました", err)
	}
	return articles, nil
}

// wrapQueryError はテーブル未作成のエラーをErrSchemaMissingに変換し、それ以外はそのままラップする。
func wrapQueryError(msg string, err error) error {
	if isUndefinedTable(err) {
		return fmt.Errorf("%s: %w", msg, ErrSchemaMissing)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUndefinedTable
}
