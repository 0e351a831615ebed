package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/intelnews/internal/model"
)

// TextSanitizer は記事のテキスト項目からHTMLを取り除く。
// 記事はプレーンテキストとして保存・表示するため、タグはすべて除去し、
// エスケープされた実体参照は元の文字に戻す。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Text はHTMLタグを除去したプレーンテキストを返す。
// 段落区切りの改行は保持する。
func (s *TextSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	// 段落・改行タグは除去前に改行へ置き換える
	replacer := strings.NewReplacer(
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"</p>", "\n", "</P>", "\n",
	)
	cleaned := s.policy.Sanitize(replacer.Replace(raw))
	cleaned = html.UnescapeString(cleaned)

	lines := strings.Split(cleaned, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Draft は下書きの各テキスト項目を無害化した下書きを返す。
// imageはURLとしてそのまま扱い、タグが含まれていれば空にする。
func (s *TextSanitizer) Draft(d model.ArticleDraft) model.ArticleDraft {
	d.Title = s.Text(d.Title)
	d.Tagline = s.Text(d.Tagline)
	d.Description = s.Text(d.Description)
	d.Category = s.Text(d.Category)
	if strings.ContainsAny(d.Image, "<>\"") {
		d.Image = ""
	}
	return d
}
