// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

const (
	// CategoryBreakingTicker はティッカー専用記事を示す予約カテゴリ。
	// このカテゴリの記事はティッカー以外の一覧に表示しない。
	CategoryBreakingTicker = "BREAKING_TICKER"

	// PlaceholderTitle はストア側で行が未入力のときに現れるプレースホルダのタイトル。
	PlaceholderTitle = "Headline Loading..."

	// DefaultCategory は管理画面でカテゴリ未指定時に使うカテゴリ。
	DefaultCategory = "NATIONAL"

	// TimestampLayout はストアが付与するタイムスタンプの書式（ミリ秒付きISO-8601、UTC）。
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Article はストアに保存された記事1行を表す。
// JSONタグはストアエンドポイントの列名に一致する。
type Article struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Title       string `json:"title"`
	Tagline     string `json:"tagline"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	IsFeatured  bool   `json:"isFeatured"`
	IsHeading   bool   `json:"isHeading"`
}

// IsValid はタイトルが空・プレースホルダでない有効な記事かを返す。
func (a *Article) IsValid() bool {
	if a == nil {
		return false
	}
	title := strings.TrimSpace(a.Title)
	return title != "" && a.Title != PlaceholderTitle
}

// IsTicker はティッカー専用記事かを返す。
func (a *Article) IsTicker() bool {
	return a.Category == CategoryBreakingTicker
}

// IsRegular は見出しでもティッカーでもない通常記事かを返す。
func (a *Article) IsRegular() bool {
	return !a.IsHeading && !a.IsTicker()
}

// InCategory はカテゴリが大文字小文字を区別せず一致するかを返す。
func (a *Article) InCategory(category string) bool {
	return a.Category != "" && strings.EqualFold(a.Category, category)
}

// Paragraphs は本文を改行で段落に分割して返す。
func (a *Article) Paragraphs() []string {
	if a.Description == "" {
		return nil
	}
	return strings.Split(a.Description, "\n")
}

// PublishedAt はタイムスタンプをパースして返す。パースできない場合はfalseを返す。
func (a *Article) PublishedAt() (time.Time, bool) {
	if a.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, a.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ArticleDraft はid・timestampを持たない投稿前の記事。
// Timestampはクライアントが付けてもストア側で上書きされる。
type ArticleDraft struct {
	Title       string `json:"title"`
	Tagline     string `json:"tagline"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	IsFeatured  bool   `json:"isFeatured"`
	IsHeading   bool   `json:"isHeading"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// NewTickerDraft はティッカー用の下書きを生成する。
func NewTickerDraft(text string, now time.Time) ArticleDraft {
	return ArticleDraft{
		Title:     text,
		Category:  CategoryBreakingTicker,
		Timestamp: now.UTC().Format(TimestampLayout),
	}
}

// ArticlePage はページ単位の記事取得結果を表す。
// Degradedは取得に失敗して空の結果に落ちたことを示す。呼び出し側は
// 「これ以上データがない」と同じに扱う。
type ArticlePage struct {
	Items    []Article
	HasMore  bool
	Degraded bool
}
