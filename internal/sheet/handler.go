package sheet

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/intelnews/internal/model"
)

// maxBodySize はPOSTボディの上限バイト数。
const maxBodySize = 1 << 20

const (
	resultSuccess = "success"
	resultError   = "error"
)

// ArticleStore はハンドラーが必要とするストア操作のインターフェース。
type ArticleStore interface {
	List(ctx context.Context) ([]model.Article, error)
	Append(ctx context.Context, draft model.ArticleDraft) (string, error)
}

// HealthChecker はDB接続の疎通を確認するインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// listResponse はGETのレスポンス。
type listResponse struct {
	Data []model.Article `json:"data"`
}

// appendResponse はPOSTのレスポンス。成功時はid、失敗時はerrorを持つ。
type appendResponse struct {
	Result string `json:"result"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handler はシートエンドポイントのHTTPハンドラー。
type Handler struct {
	store  ArticleStore
	logger *slog.Logger
}

// NewHandler はHandlerを生成する。
func NewHandler(store ArticleStore, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// List は全行を返す。
// GET /
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	articles, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("記事一覧の取得に失敗しました", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, appendResponse{Result: resultError, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Data: articles})
}

// Append は行を追加する。
// POST / ボディはContent-Typeに関わらずJSONとして解釈する。
// 結果は常に200で返し、成否はresultフィールドで示す。
func (h *Handler) Append(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeJSON(w, http.StatusOK, appendResponse{Result: resultError, Error: "リクエストボディを読み取れません"})
		return
	}
	if len(body) > maxBodySize {
		writeJSON(w, http.StatusOK, appendResponse{Result: resultError, Error: "リクエストボディが大きすぎます"})
		return
	}

	var draft model.ArticleDraft
	if err := json.Unmarshal(body, &draft); err != nil {
		writeJSON(w, http.StatusOK, appendResponse{Result: resultError, Error: "JSONを解析できません: " + err.Error()})
		return
	}

	id, err := h.store.Append(r.Context(), draft)
	if err != nil {
		h.logger.Error("記事行の追加に失敗しました", slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, appendResponse{Result: resultError, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, appendResponse{Result: resultSuccess, ID: id})
}

// NewRouter はシートエンドポイントのルーティングを構成する。
// healthがnilの場合、/healthは常に200を返す。
func NewRouter(h *Handler, health HealthChecker, mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	for _, mw := range mws {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", h.List)
	r.Post("/", h.Append)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
