package store

import "github.com/hitoshi/intelnews/internal/model"

// DefaultPageSize はlimit未指定（1未満）時のページサイズ。
const DefaultPageSize = 6

// FilterValid はタイトルが空・プレースホルダの記事を除外する。
func FilterValid(articles []model.Article) []model.Article {
	out := make([]model.Article, 0, len(articles))
	for i := range articles {
		if articles[i].IsValid() {
			out = append(out, articles[i])
		}
	}
	return out
}

// FilterCategory はカテゴリが大文字小文字を区別せず一致する記事のみを返す。
// categoryが空の場合は入力をそのまま返す。
func FilterCategory(articles []model.Article, category string) []model.Article {
	if category == "" {
		return articles
	}
	out := make([]model.Article, 0, len(articles))
	for i := range articles {
		if articles[i].InCategory(category) {
			out = append(out, articles[i])
		}
	}
	return out
}

// Paginate は1始まりのページ番号とページサイズで切り出し、続きがあるかを返す。
// pageが1未満の場合は1、limitが1未満の場合はDefaultPageSizeとして扱う。
func Paginate(articles []model.Article, page, limit int) ([]model.Article, bool) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	// 乗算の前にページ数と比べ、巨大なpageでもオーバーフローさせない
	pages := len(articles) / limit
	if len(articles)%limit != 0 {
		pages++
	}
	if page-1 >= pages {
		return []model.Article{}, false
	}

	start := (page - 1) * limit
	end := len(articles)
	if limit < end-start {
		end = start + limit
	}
	hasMore := end < len(articles)

	items := make([]model.Article, end-start)
	copy(items, articles[start:end])
	return items, hasMore
}
