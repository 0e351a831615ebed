// Package feed はトップページの各区画（ティッカー・カルーセル・ヒーロー・最新・カテゴリ別）と
// 無限スクロールのフィードを組み立てる。
//
// 組み立て関数はすべて純粋関数で、入力の記事はストアの行順で並んでいることを前提とする。
package feed

import (
	"github.com/hitoshi/intelnews/internal/model"
)

const (
	// LatestSize は「最新」区画の件数。
	LatestSize = 6
	// CategoryBucketSize はカテゴリ区画ごとの件数。
	CategoryBucketSize = 3
	// carouselFallbackSize は見出し・特集がないときにカルーセルへ回す通常記事の件数。
	carouselFallbackSize = 5
)

// DefaultCategories はカテゴリ区画の既定の並び。
var DefaultCategories = []string{"NATIONAL", "POLITICS", "ECONOMY", "SPORTS", "TECHNOLOGY", "ENTERTAINMENT"}

// fallbackTicker はティッカーに流す記事が1件もないときの文言。
var fallbackTicker = []string{"LIVE UPDATES ACTIVE", "SCROLL FOR MORE NEWS"}

// TickerHeadlines はティッカーに流す見出し文を返す。
// ティッカー専用記事があればそのタイトル、なければ見出し記事のタイトル、
// どちらもなければ固定の2行を返す。結果は常に1件以上。
func TickerHeadlines(records []model.Article) []string {
	var tickers, headings []string
	for i := range records {
		switch {
		case records[i].IsTicker():
			tickers = append(tickers, records[i].Title)
		case records[i].IsHeading:
			headings = append(headings, records[i].Title)
		}
	}
	if len(tickers) > 0 {
		return tickers
	}
	if len(headings) > 0 {
		return headings
	}
	out := make([]string, len(fallbackTicker))
	copy(out, fallbackTicker)
	return out
}

// CarouselItems はカルーセルの記事を返す。
// 見出し記事、続いて見出しでない特集記事の順に並べ、IDの重複は先勝ちで除く。
// ティッカー専用記事は含めない。どちらも0件なら通常記事の先頭5件を返す。
func CarouselItems(records []model.Article) []model.Article {
	seen := make(map[string]struct{})
	out := make([]model.Article, 0)

	add := func(a model.Article) {
		if _, ok := seen[a.ID]; ok {
			return
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}

	for i := range records {
		if records[i].IsHeading && !records[i].IsTicker() {
			add(records[i])
		}
	}
	for i := range records {
		if records[i].IsFeatured && records[i].IsRegular() {
			add(records[i])
		}
	}

	if len(out) > 0 {
		return out
	}
	return firstRegular(records, carouselFallbackSize)
}

// SelectHero はヒーロー記事を返す。
// 最初の見出し記事、なければ最初の通常記事。どちらもなければnil。
func SelectHero(records []model.Article) *model.Article {
	for i := range records {
		if records[i].IsHeading && !records[i].IsTicker() {
			hero := records[i]
			return &hero
		}
	}
	for i := range records {
		if records[i].IsRegular() {
			hero := records[i]
			return &hero
		}
	}
	return nil
}

// LatestItems は通常記事の先頭LatestSize件を返す。
func LatestItems(records []model.Article) []model.Article {
	return firstRegular(records, LatestSize)
}

// CategoryBucket はカテゴリ1区画分。
type CategoryBucket struct {
	Category string          `json:"category"`
	Items    []model.Article `json:"items"`
}

// CategoryBuckets は既知カテゴリごとに一致する通常記事を先頭から最大3件ずつ集める。
// 一致は大文字小文字を区別しない。categoriesに無いカテゴリの記事は区画を持たない。
// 該当記事が0件のカテゴリも空の区画として返す（表示するかは呼び出し側が決める）。
func CategoryBuckets(records []model.Article, categories []string) []CategoryBucket {
	buckets := make([]CategoryBucket, 0, len(categories))
	for _, category := range categories {
		items := make([]model.Article, 0, CategoryBucketSize)
		for i := range records {
			if len(items) == CategoryBucketSize {
				break
			}
			if records[i].IsRegular() && records[i].InCategory(category) {
				items = append(items, records[i])
			}
		}
		buckets = append(buckets, CategoryBucket{Category: category, Items: items})
	}
	return buckets
}

// WithoutTicker はティッカー専用記事を除いた記事を返す。
func WithoutTicker(records []model.Article) []model.Article {
	out := make([]model.Article, 0, len(records))
	for i := range records {
		if !records[i].IsTicker() {
			out = append(out, records[i])
		}
	}
	return out
}

func firstRegular(records []model.Article, n int) []model.Article {
	out := make([]model.Article, 0, n)
	for i := range records {
		if len(out) == n {
			break
		}
		if records[i].IsRegular() {
			out = append(out, records[i])
		}
	}
	return out
}
