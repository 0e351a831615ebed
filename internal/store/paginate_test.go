package store

import (
	"fmt"
	"math"
	"testing"

	"github.com/hitoshi/intelnews/internal/model"
)

func makeArticles(n int) []model.Article {
	out := make([]model.Article, n)
	for i := range out {
		out[i] = model.Article{ID: fmt.Sprintf("%d", i+1), Title: fmt.Sprintf("t%d", i+1)}
	}
	return out
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		page, limit int
		wantLen     int
		wantFirstID string
		wantHasMore bool
	}{
		{name: "先頭ページ", total: 12, page: 1, limit: 6, wantLen: 6, wantFirstID: "1", wantHasMore: true},
		{name: "最終ページちょうど", total: 12, page: 2, limit: 6, wantLen: 6, wantFirstID: "7", wantHasMore: false},
		{name: "範囲外", total: 12, page: 3, limit: 6, wantLen: 0, wantHasMore: false},
		{name: "端数ページ", total: 8, page: 2, limit: 6, wantLen: 2, wantFirstID: "7", wantHasMore: false},
		{name: "page0は1扱い", total: 8, page: 0, limit: 6, wantLen: 6, wantFirstID: "1", wantHasMore: true},
		{name: "負のpageは1扱い", total: 3, page: -4, limit: 2, wantLen: 2, wantFirstID: "1", wantHasMore: true},
		{name: "limit0は既定値", total: 10, page: 1, limit: 0, wantLen: DefaultPageSize, wantFirstID: "1", wantHasMore: true},
		{name: "空の入力", total: 0, page: 1, limit: 6, wantLen: 0, wantHasMore: false},
		{name: "大きいlimit", total: 5, page: 1, limit: 100, wantLen: 5, wantFirstID: "1", wantHasMore: false},
		{name: "最大のpage", total: 20, page: math.MaxInt, limit: 6, wantLen: 0, wantHasMore: false},
		{name: "積が桁あふれするpage", total: 20, page: math.MaxInt/4 + 2, limit: 4, wantLen: 0, wantHasMore: false},
		{name: "最大のlimit", total: 20, page: 1, limit: math.MaxInt, wantLen: 20, wantFirstID: "1", wantHasMore: false},
		{name: "最大のpageとlimit", total: 20, page: math.MaxInt, limit: math.MaxInt, wantLen: 0, wantHasMore: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, hasMore := Paginate(makeArticles(tt.total), tt.page, tt.limit)
			if len(items) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(items), tt.wantLen)
			}
			if hasMore != tt.wantHasMore {
				t.Errorf("hasMore = %v, want %v", hasMore, tt.wantHasMore)
			}
			if tt.wantFirstID != "" && len(items) > 0 && items[0].ID != tt.wantFirstID {
				t.Errorf("items[0].ID = %q, want %q", items[0].ID, tt.wantFirstID)
			}
			if items == nil {
				t.Error("items はnilではなく空スライスを返す")
			}
		})
	}
}

func TestPaginate_DoesNotAliasInput(t *testing.T) {
	src := makeArticles(3)
	items, _ := Paginate(src, 1, 2)
	items[0].Title = "changed"
	if src[0].Title != "t1" {
		t.Error("Paginate の結果を変更すると入力が変わってしまう")
	}
}

func TestFilterValid(t *testing.T) {
	in := []model.Article{
		{ID: "1", Title: "ok"},
		{ID: "2", Title: ""},
		{ID: "3", Title: "   "},
		{ID: "4", Title: model.PlaceholderTitle},
		{ID: "5", Title: "  padded  "},
	}
	got := FilterValid(in)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "5" {
		t.Errorf("FilterValid = %+v, want ids 1, 5", got)
	}
}

func TestFilterCategory(t *testing.T) {
	in := []model.Article{
		{ID: "1", Title: "a", Category: "SPORTS"},
		{ID: "2", Title: "b", Category: "Sports"},
		{ID: "3", Title: "c", Category: "ECONOMY"},
		{ID: "4", Title: "d", Category: ""},
	}

	if got := FilterCategory(in, ""); len(got) != 4 {
		t.Errorf("空カテゴリは全件 = %d, want 4", len(got))
	}
	got := FilterCategory(in, "sports")
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Errorf("FilterCategory(sports) = %+v", got)
	}
	if got := FilterCategory(in, "WEATHER"); len(got) != 0 {
		t.Errorf("FilterCategory(WEATHER) = %d, want 0", len(got))
	}
}
