package model

import (
	"net/url"
	"strings"
)

// Normalize は下書きの前後空白を除去し、カテゴリ未指定時は既定カテゴリを設定する。
func (d *ArticleDraft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Tagline = strings.TrimSpace(d.Tagline)
	d.Description = strings.TrimSpace(d.Description)
	d.Image = strings.TrimSpace(d.Image)
	d.Category = strings.TrimSpace(d.Category)
	if d.Category == "" {
		d.Category = DefaultCategory
	}
}

// Validate は下書きを検証する。
// タイトル必須（プレースホルダ不可）、画像URLは空か絶対http(s) URL。
func (d *ArticleDraft) Validate() error {
	if d.Title == "" {
		return NewInvalidDraftError("タイトルが空です")
	}
	if d.Title == PlaceholderTitle {
		return NewInvalidDraftError("プレースホルダのタイトルは使用できません")
	}
	if d.Image != "" {
		u, err := url.Parse(d.Image)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return NewInvalidDraftError("画像URLはhttp://またはhttps://で始まる必要があります")
		}
	}
	return nil
}
