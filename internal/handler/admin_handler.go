package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/intelnews/internal/auth"
	"github.com/hitoshi/intelnews/internal/middleware"
	"github.com/hitoshi/intelnews/internal/model"
)

// maxAdminBodySize は管理APIのリクエストボディ上限。
const maxAdminBodySize = 1 << 20

// AuthServiceInterface は管理者認証サービスのインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, secret string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// Publisher は記事ストアへ下書きを投稿するインターフェース。
type Publisher interface {
	Submit(ctx context.Context, draft model.ArticleDraft) (string, error)
}

// AdminHandlerConfig は管理ハンドラーの設定。
type AdminHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AdminHandler は管理者向けのHTTPハンドラー。
type AdminHandler struct {
	auth      AuthServiceInterface
	publisher Publisher
	config    AdminHandlerConfig
	now       func() time.Time
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(authService AuthServiceInterface, publisher Publisher, config AdminHandlerConfig) *AdminHandler {
	return &AdminHandler{
		auth:      authService,
		publisher: publisher,
		config:    config,
		now:       time.Now,
	}
}

// --- リクエスト・レスポンス型 ---

type loginRequest struct {
	Secret string `json:"secret"`
}

type loginResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

type tickerRequest struct {
	Text string `json:"text"`
}

type publishResponse struct {
	ID string `json:"id"`
}

// Login は管理者パスワードを検証し、セッションCookieを発行する。
// POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, model.NewInvalidCredentialsError())
		return
	}

	session, err := h.auth.Login(r.Context(), req.Secret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			handleServiceError(w, model.NewInvalidCredentialsError())
			return
		}
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{ExpiresAt: session.ExpiresAt})
}

// Logout はセッションを破棄し、Cookieを削除する。
// POST /api/admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := middleware.SessionIDFromContext(r.Context()); err == nil {
		if err := h.auth.Logout(r.Context(), sessionID); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me はセッションが有効であることを返す。セッションミドルウェアの後段に置く。
// GET /api/admin/me
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

// PublishArticle は記事を公開する。
// POST /api/admin/articles
func (h *AdminHandler) PublishArticle(w http.ResponseWriter, r *http.Request) {
	var draft model.ArticleDraft
	if err := decodeJSONBody(w, r, &draft); err != nil {
		handleServiceError(w, model.NewInvalidDraftError("JSONを解析できません"))
		return
	}
	// タイムスタンプはストアが付与する
	draft.Timestamp = ""
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		handleServiceError(w, err)
		return
	}
	h.publish(w, r, draft)
}

// PublishTicker はティッカー用の記事を公開する。
// POST /api/admin/ticker
func (h *AdminHandler) PublishTicker(w http.ResponseWriter, r *http.Request) {
	var req tickerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, model.NewInvalidDraftError("JSONを解析できません"))
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		handleServiceError(w, model.NewInvalidDraftError("ティッカーの本文が空です"))
		return
	}
	draft := model.NewTickerDraft(text, h.now())
	if err := draft.Validate(); err != nil {
		handleServiceError(w, err)
		return
	}
	h.publish(w, r, draft)
}

func (h *AdminHandler) publish(w http.ResponseWriter, r *http.Request, draft model.ArticleDraft) {
	id, err := h.publisher.Submit(r.Context(), draft)
	if err != nil {
		// 投稿の失敗は理由を問わず502として呼び出し元に返す
		handleServiceError(w, model.NewPublishFailedError(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, publishResponse{ID: id})
}

// decodeJSONBody はサイズ上限付きでJSONボディをデコードする。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBodySize)).Decode(v)
}
