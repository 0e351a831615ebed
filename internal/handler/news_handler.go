package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/intelnews/internal/feed"
	"github.com/hitoshi/intelnews/internal/model"
	"github.com/hitoshi/intelnews/internal/store"
)

// NewsFetcher は記事ストアからページ単位で記事を取得するインターフェース。
type NewsFetcher interface {
	FetchPage(ctx context.Context, page, limit int, category string) model.ArticlePage
	FindByID(ctx context.Context, id string) (*model.Article, error)
}

// FeedServiceInterface はトップページと無限フィードを組み立てるサービスのインターフェース。
type FeedServiceInterface interface {
	Home(ctx context.Context) *feed.HomeView
	FeedChunk(ctx context.Context, k int) feed.Chunk
}

// NewsHandler は記事閲覧系のHTTPハンドラー。
type NewsHandler struct {
	news NewsFetcher
	feed FeedServiceInterface
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(news NewsFetcher, feedService FeedServiceInterface) *NewsHandler {
	return &NewsHandler{news: news, feed: feedService}
}

// --- レスポンス型 ---

// newsPageResponse は記事一覧のレスポンス。
type newsPageResponse struct {
	Items    []model.Article `json:"items"`
	HasMore  bool            `json:"has_more"`
	Degraded bool            `json:"degraded"`
}

// feedChunkResponse は無限フィード1回分のレスポンス。
// NextPageは次に要求すべきチャンク番号。続きがない場合は0。
type feedChunkResponse struct {
	Items    []model.Article `json:"items"`
	HasMore  bool            `json:"has_more"`
	NextPage int             `json:"next_page,omitempty"`
	Degraded bool            `json:"degraded"`
}

// articleResponse は記事詳細のレスポンス。本文を段落に分割したものを含む。
type articleResponse struct {
	model.Article
	Paragraphs []string `json:"paragraphs"`
}

// ListNews は記事一覧をページ単位で返す。
// GET /api/news?page=1&limit=6&category=SPORTS
// ストアの読み込みに失敗した場合も200で空の一覧を返し、degradedで示す。
func (h *NewsHandler) ListNews(w http.ResponseWriter, r *http.Request) {
	page, ok := positiveIntParam(w, r, "page", 1)
	if !ok {
		return
	}
	limit, ok := positiveIntParam(w, r, "limit", store.DefaultPageSize)
	if !ok {
		return
	}
	category := r.URL.Query().Get("category")

	result := h.news.FetchPage(r.Context(), page, limit, category)
	items := result.Items
	if items == nil {
		items = []model.Article{}
	}
	writeJSON(w, http.StatusOK, newsPageResponse{
		Items:    items,
		HasMore:  result.HasMore,
		Degraded: result.Degraded,
	})
}

// Home は組み立て済みのトップページを返す。
// GET /api/home
func (h *NewsHandler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.feed.Home(r.Context()))
}

// FeedChunk は無限フィードのチャンクを返す。
// GET /api/feed?page=1
// 縮退した場合は同じチャンクを再要求できるようnext_pageに同じ番号を返す。
func (h *NewsHandler) FeedChunk(w http.ResponseWriter, r *http.Request) {
	k, ok := positiveIntParam(w, r, "page", 1)
	if !ok {
		return
	}

	chunk := h.feed.FeedChunk(r.Context(), k)
	resp := feedChunkResponse{
		Items:    chunk.Items,
		HasMore:  chunk.HasMore,
		Degraded: chunk.Degraded,
	}
	if resp.Items == nil {
		resp.Items = []model.Article{}
	}
	switch {
	case chunk.Degraded:
		resp.NextPage = k
	case chunk.HasMore && k < feed.MaxChunk:
		resp.NextPage = k + 1
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetArticle は記事詳細を返す。
// GET /api/articles/{id}
func (h *NewsHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	article, err := h.news.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	paragraphs := article.Paragraphs()
	if paragraphs == nil {
		paragraphs = []string{}
	}
	writeJSON(w, http.StatusOK, articleResponse{Article: *article, Paragraphs: paragraphs})
}

// positiveIntParam はクエリパラメータを1以上の整数として読み取る。
// 未指定の場合はdefaultValを返す。不正な値の場合は400を書き込みfalseを返す。
func positiveIntParam(w http.ResponseWriter, r *http.Request, name string, defaultVal int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		handleServiceError(w, model.NewInvalidPageError(name, raw))
		return 0, false
	}
	return v, true
}
