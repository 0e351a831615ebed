package feed

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/hitoshi/intelnews/internal/model"
)

func regular(id, category string) model.Article {
	return model.Article{ID: id, Title: "title-" + id, Category: category}
}

func heading(id string) model.Article {
	return model.Article{ID: id, Title: "head-" + id, Category: "NATIONAL", IsHeading: true}
}

func ticker(id, text string) model.Article {
	return model.Article{ID: id, Title: text, Category: model.CategoryBreakingTicker}
}

func ids(articles []model.Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.ID)
	}
	return out
}

func TestTickerHeadlines(t *testing.T) {
	tests := []struct {
		name    string
		records []model.Article
		want    []string
	}{
		{
			name:    "ティッカー専用記事を優先",
			records: []model.Article{heading("h1"), ticker("t1", "速報1"), ticker("t2", "速報2")},
			want:    []string{"速報1", "速報2"},
		},
		{
			name:    "見出し記事へフォールバック",
			records: []model.Article{regular("r1", "SPORTS"), heading("h1"), heading("h2")},
			want:    []string{"head-h1", "head-h2"},
		},
		{
			name:    "固定文言へフォールバック",
			records: []model.Article{regular("r1", "SPORTS")},
			want:    []string{"LIVE UPDATES ACTIVE", "SCROLL FOR MORE NEWS"},
		},
		{
			name:    "空入力",
			records: nil,
			want:    []string{"LIVE UPDATES ACTIVE", "SCROLL FOR MORE NEWS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TickerHeadlines(tt.records)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TickerHeadlines = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTickerHeadlines_FallbackNotShared(t *testing.T) {
	got := TickerHeadlines(nil)
	got[0] = "changed"
	if again := TickerHeadlines(nil); again[0] != "LIVE UPDATES ACTIVE" {
		t.Error("固定文言が呼び出し側の変更で書き換わってしまう")
	}
}

func TestCarouselItems_DedupByID(t *testing.T) {
	records := []model.Article{
		{ID: "x", Title: "見出し版", IsHeading: true},
		{ID: "x", Title: "特集版", IsFeatured: true},
		{ID: "y", Title: "特集", IsFeatured: true},
	}
	got := CarouselItems(records)
	if !reflect.DeepEqual(ids(got), []string{"x", "y"}) {
		t.Fatalf("ids = %v, want [x y]", ids(got))
	}
	if got[0].Title != "見出し版" {
		t.Errorf("先勝ちで見出し版が残る: got %q", got[0].Title)
	}
}

func TestCarouselItems_HeadingsBeforeFeatured(t *testing.T) {
	records := []model.Article{
		{ID: "f1", Title: "f1", IsFeatured: true},
		heading("h1"),
		{ID: "f2", Title: "f2", IsFeatured: true, IsHeading: true},
	}
	got := CarouselItems(records)
	if !reflect.DeepEqual(ids(got), []string{"h1", "f2", "f1"}) {
		t.Errorf("ids = %v, want [h1 f2 f1]", ids(got))
	}
}

func TestCarouselItems_ExcludesTicker(t *testing.T) {
	records := []model.Article{
		{ID: "t", Title: "t", Category: model.CategoryBreakingTicker, IsFeatured: true, IsHeading: true},
		regular("r1", "SPORTS"),
	}
	got := CarouselItems(records)
	if !reflect.DeepEqual(ids(got), []string{"r1"}) {
		t.Errorf("ids = %v, want [r1]", ids(got))
	}
}

func TestCarouselItems_FallbackToFirstFiveRegular(t *testing.T) {
	var records []model.Article
	for i := 1; i <= 7; i++ {
		records = append(records, regular(fmt.Sprintf("r%d", i), "SPORTS"))
	}
	records = append([]model.Article{ticker("t", "速報")}, records...)

	got := CarouselItems(records)
	if !reflect.DeepEqual(ids(got), []string{"r1", "r2", "r3", "r4", "r5"}) {
		t.Errorf("ids = %v", ids(got))
	}
}

func TestCarouselItems_EmptyWhenNothingToShow(t *testing.T) {
	got := CarouselItems([]model.Article{ticker("t", "速報")})
	if got == nil || len(got) != 0 {
		t.Errorf("CarouselItems = %v, want empty non-nil", got)
	}
}

func TestSelectHero(t *testing.T) {
	if hero := SelectHero([]model.Article{regular("r1", ""), heading("h1")}); hero == nil || hero.ID != "h1" {
		t.Errorf("見出し記事を優先: got %+v", hero)
	}
	if hero := SelectHero([]model.Article{ticker("t", "x"), regular("r1", "")}); hero == nil || hero.ID != "r1" {
		t.Errorf("通常記事へフォールバック: got %+v", hero)
	}
	if hero := SelectHero([]model.Article{ticker("t", "x")}); hero != nil {
		t.Errorf("該当なしはnil: got %+v", hero)
	}
}

func TestLatestItems(t *testing.T) {
	records := []model.Article{heading("h1"), ticker("t1", "x")}
	for i := 1; i <= 8; i++ {
		records = append(records, regular(fmt.Sprintf("r%d", i), "ECONOMY"))
	}
	got := LatestItems(records)
	want := []string{"r1", "r2", "r3", "r4", "r5", "r6"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}
}

func TestCategoryBuckets(t *testing.T) {
	records := []model.Article{
		regular("s1", "SPORTS"),
		regular("s2", "sports"),
		heading("h1"),
		{ID: "sh", Title: "x", Category: "SPORTS", IsHeading: true},
		regular("s3", "Sports"),
		regular("s4", "SPORTS"),
		regular("w1", "WEATHER"),
		ticker("t1", "速報"),
	}

	got := CategoryBuckets(records, []string{"SPORTS", "ECONOMY"})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Category != "SPORTS" || !reflect.DeepEqual(ids(got[0].Items), []string{"s1", "s2", "s3"}) {
		t.Errorf("SPORTS = %+v", got[0])
	}
	if got[1].Category != "ECONOMY" || len(got[1].Items) != 0 {
		t.Errorf("ECONOMY = %+v, want empty", got[1])
	}
	for _, b := range got {
		for _, a := range b.Items {
			if a.ID == "w1" || a.IsTicker() {
				t.Errorf("想定外の記事が区画に入った: %+v", a)
			}
		}
	}
}

func TestWithoutTicker(t *testing.T) {
	got := WithoutTicker([]model.Article{ticker("t1", "x"), regular("r1", ""), ticker("t2", "y")})
	if !reflect.DeepEqual(ids(got), []string{"r1"}) {
		t.Errorf("ids = %v, want [r1]", ids(got))
	}
}

// 1件の見出し記事だけが返るときの組み立て結果。
func TestAssemble_SingleHeadingScenario(t *testing.T) {
	records := []model.Article{{ID: "1", Title: "A", Category: "SPORTS", IsHeading: true}}

	if got := CarouselItems(records); !reflect.DeepEqual(ids(got), []string{"1"}) {
		t.Errorf("carousel = %v, want [1]", ids(got))
	}
	if got := TickerHeadlines(records); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("ticker = %v, want [A]", got)
	}
	if got := LatestItems(records); len(got) != 0 {
		t.Errorf("latest = %v, want empty", ids(got))
	}
}
