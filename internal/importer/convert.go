package importer

import (
	"strings"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/intelnews/internal/model"
)

// maxTaglineRunes は要約から作るタグラインの最大文字数。
const maxTaglineRunes = 200

// TextCleaner はフィード由来のHTMLをプレーンテキストにする。
// security.TextSanitizerが実装する。
type TextCleaner interface {
	Text(raw string) string
	Draft(d model.ArticleDraft) model.ArticleDraft
}

// itemToDraft はフィードの1記事を投稿用の下書きに変換する。
// 本文はcontent、なければdescriptionを使う。contentがある場合のみdescriptionをタグラインにする。
// 画像はitem.Image、なければ画像のenclosureから取る。
func itemToDraft(item *gofeed.Item, category string, cleaner TextCleaner) model.ArticleDraft {
	description := item.Content
	var tagline string
	if strings.TrimSpace(description) == "" {
		description = item.Description
	} else {
		tagline = truncateRunes(cleaner.Text(item.Description), maxTaglineRunes)
	}

	draft := model.ArticleDraft{
		Title:       item.Title,
		Tagline:     tagline,
		Description: description,
		Image:       itemImage(item),
		Category:    category,
	}
	return cleaner.Draft(draft)
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && isHTTPURL(item.Image.URL) {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(enc.Type), "image/") && isHTTPURL(enc.URL) {
			return enc.URL
		}
	}
	return ""
}

func isHTTPURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// titleKey は重複判定に使うタイトルの正規化形。
func titleKey(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
