package model

import (
	"errors"
	"testing"
	"time"
)

func TestArticleDraft_NormalizeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   ArticleDraft
		wantErr bool
	}{
		{"最小", ArticleDraft{Title: "t"}, false},
		{"https画像", ArticleDraft{Title: "t", Image: "https://img.example.com/a.jpg"}, false},
		{"http画像", ArticleDraft{Title: "t", Image: " http://img.example.com/a.jpg "}, false},
		{"空白のみのタイトル", ArticleDraft{Title: "  \t"}, true},
		{"プレースホルダ", ArticleDraft{Title: PlaceholderTitle}, true},
		{"相対URL", ArticleDraft{Title: "t", Image: "/a.jpg"}, true},
		{"ホストなし", ArticleDraft{Title: "t", Image: "https://"}, true},
		{"data URL", ArticleDraft{Title: "t", Image: "data:image/png;base64,AAAA"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.draft
			d.Normalize()
			err := d.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var apiErr *APIError
			if err != nil && (!errors.As(err, &apiErr) || apiErr.Code != ErrCodeInvalidDraft) {
				t.Errorf("err = %v, want INVALID_DRAFT", err)
			}
		})
	}
}

func TestArticleDraft_NormalizeDefaultsCategory(t *testing.T) {
	d := ArticleDraft{Title: " 見出し ", Category: "  "}
	d.Normalize()
	if d.Title != "見出し" || d.Category != DefaultCategory {
		t.Errorf("draft = %+v", d)
	}

	d = ArticleDraft{Title: "t", Category: "sports"}
	d.Normalize()
	if d.Category != "sports" {
		t.Errorf("指定カテゴリはそのまま: %q", d.Category)
	}
}

func TestNewTickerDraft(t *testing.T) {
	now := time.Date(2026, 5, 6, 16, 30, 0, 0, time.FixedZone("JST", 9*3600))
	d := NewTickerDraft("号外", now)
	if d.Category != CategoryBreakingTicker || d.IsFeatured || d.IsHeading {
		t.Errorf("draft = %+v", d)
	}
	if d.Timestamp != "2026-05-06T07:30:00.000Z" {
		t.Errorf("Timestamp = %q", d.Timestamp)
	}
}

func TestArticle_Predicates(t *testing.T) {
	var nilArticle *Article
	if nilArticle.IsValid() {
		t.Error("nilは無効")
	}
	a := Article{Title: "t", Category: "Sports"}
	if !a.IsValid() || !a.IsRegular() || !a.InCategory("SPORTS") || a.InCategory("") {
		t.Errorf("predicates for %+v", a)
	}
	ticker := Article{Title: "t", Category: CategoryBreakingTicker}
	if ticker.IsRegular() || !ticker.IsTicker() {
		t.Error("ティッカー記事は通常記事ではない")
	}
	if got := (&Article{Description: "a\nb"}).Paragraphs(); len(got) != 2 {
		t.Errorf("Paragraphs = %v", got)
	}
	if _, ok := (&Article{Timestamp: "not a time"}).PublishedAt(); ok {
		t.Error("不正なタイムスタンプはfalse")
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now}
	if !s.Expired(now) {
		t.Error("期限ちょうどは期限切れ")
	}
	if s.Expired(now.Add(-time.Second)) {
		t.Error("期限前は有効")
	}
}
