// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/intelnews/internal/model"
)

// ErrSchemaMissing は記事テーブルが存在しないことを示す。
// 外部からテーブルが削除された場合に返り、呼び出し側はスキーマを作り直して再試行する。
var ErrSchemaMissing = errors.New("articles table does not exist")

// ArticleRepository は記事行の永続化インターフェース。
// 行は追加のみで、更新・削除は行わない。
type ArticleRepository interface {
	// Append は記事を末尾の行として追加する。
	Append(ctx context.Context, article *model.Article) error

	// ListAll は全記事を行の追加順で返す。0件の場合は空スライスを返す。
	ListAll(ctx context.Context) ([]model.Article, error)
}

// AppendLocker は行追加の相互排他ロック。
type AppendLocker interface {
	// Acquire はwait以内にロックの取得を試みる。
	// 取得できた場合はacquired=trueと解放関数を返す。
	// 取得できなかった場合もreleaseは呼び出し可能な関数を返す。
	Acquire(ctx context.Context, wait time.Duration) (release func(), acquired bool, err error)
}
