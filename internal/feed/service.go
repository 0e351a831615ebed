package feed

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/hitoshi/intelnews/internal/model"
)

const (
	// homePageLimit はヒーロー・ティッカー・カルーセル・最新区画の元になる取得件数。
	homePageLimit = 10
	// categoryPageLimit はカテゴリ区画の元になる取得件数。全件の近似として十分大きくとる。
	categoryPageLimit = 100
	// ChunkSize は無限フィード1回分の件数。
	ChunkSize = 6
	// chunkPageLead はトップページに既に出ている記事を飛ばすためのページのずらし幅。
	// チャンクkはストアのページk+chunkPageLeadに対応する。
	chunkPageLead = 3
	// MaxChunk は受け付けるチャンク番号の上限。k+chunkPageLeadとk+1が桁あふれしない範囲。
	MaxChunk = math.MaxInt - chunkPageLead - 1
)

// Fetcher は記事ストアからページ単位で記事を取得する。
// store.Clientが実装する。
type Fetcher interface {
	FetchPage(ctx context.Context, page, limit int, category string) model.ArticlePage
}

// HomeView はトップページの組み立て結果。
// Degradedはいずれかの取得が失敗して空に縮退したことを示す。
type HomeView struct {
	Ticker     []string         `json:"ticker"`
	Hero       *model.Article   `json:"hero"`
	Carousel   []model.Article  `json:"carousel"`
	Latest     []model.Article  `json:"latest"`
	Categories []CategoryBucket `json:"categories"`
	Degraded   bool             `json:"degraded"`
}

// Chunk は無限フィードの1回分。
type Chunk struct {
	Items    []model.Article
	HasMore  bool
	Degraded bool
}

// Service はストアから記事を取得してトップページと無限フィードを組み立てる。
type Service struct {
	fetcher    Fetcher
	categories []string
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// categoriesが空の場合はDefaultCategoriesを使う。
func NewService(fetcher Fetcher, categories []string, logger *slog.Logger) *Service {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &Service{
		fetcher:    fetcher,
		categories: categories,
		logger:     logger,
	}
}

// Categories はカテゴリ区画の並びを返す。
func (s *Service) Categories() []string {
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}

// Home はトップページを組み立てる。
// 先頭10件と先頭100件の2回の取得を並行して行う。取得の失敗はエラーにせず、
// 該当区画を空にしてDegradedを立てる。
func (s *Service) Home(ctx context.Context) *HomeView {
	var head, wide model.ArticlePage
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		head = s.fetcher.FetchPage(ctx, 1, homePageLimit, "")
	}()
	go func() {
		defer wg.Done()
		wide = s.fetcher.FetchPage(ctx, 1, categoryPageLimit, "")
	}()
	wg.Wait()

	view := &HomeView{
		Ticker:     TickerHeadlines(head.Items),
		Hero:       SelectHero(head.Items),
		Carousel:   CarouselItems(head.Items),
		Latest:     LatestItems(head.Items),
		Categories: CategoryBuckets(wide.Items, s.categories),
		Degraded:   head.Degraded || wide.Degraded,
	}

	if view.Degraded {
		s.logger.Warn("記事の取得に失敗したためトップページを縮退表示します",
			slog.Bool("head_degraded", head.Degraded),
			slog.Bool("categories_degraded", wide.Degraded),
		)
	}
	return view
}

// FeedChunk は無限フィードのk番目（1始まり）のチャンクを返す。
// ティッカー専用記事は取り除く。kが1未満の場合は1として扱う。
func (s *Service) FeedChunk(ctx context.Context, k int) Chunk {
	if k < 1 {
		k = 1
	}
	// どのストアにも存在しないページなので取得せずに終端を返す
	if k > MaxChunk {
		return Chunk{Items: []model.Article{}}
	}
	page := s.fetcher.FetchPage(ctx, k+chunkPageLead, ChunkSize, "")
	return Chunk{
		Items:    WithoutTicker(page.Items),
		HasMore:  page.HasMore,
		Degraded: page.Degraded,
	}
}
