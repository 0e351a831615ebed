// Package store は記事ストアエンドポイント（スプレッドシート）へのアダプタを提供する。
//
// 読み取りは常に全件を取得し、フィルタ・ページングはクライアント側で行う。
// 読み取りの失敗は空の結果に縮退させ、書き込みの失敗は必ず呼び出し元へ返す。
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hitoshi/intelnews/internal/metrics"
	"github.com/hitoshi/intelnews/internal/model"
)

const (
	defaultFetchTimeout    = 20 * time.Second
	defaultSubmitTimeout   = 30 * time.Second
	defaultMaxResponseSize = 10 << 20
	userAgent              = "IntelNews/1.0"
)

// ErrPublishFailed は記事の投稿に失敗したことを示す。
// 通信エラー、JSONでない応答、エンドポイントが報告したエラーのいずれもこれをラップする。
var ErrPublishFailed = errors.New("publish failed")

// ErrResponseTooLarge は応答がMaxResponseSizeを超えたことを示す。
// ストアは追記のみで増え続けるため、JSONでない応答とは区別して報告する。
var ErrResponseTooLarge = errors.New("store endpoint response exceeds the size limit")

// ClientConfig はClientの設定。
type ClientConfig struct {
	Endpoint        string
	FetchTimeout    time.Duration // 読み取りの待ち時間上限（既定20秒）
	SubmitTimeout   time.Duration // 書き込みの待ち時間上限（既定30秒）
	MaxResponseSize int64
}

// Client は記事ストアエンドポイントのクライアント。
// キャッシュや同一リクエストの集約は行わず、呼び出しごとに1回通信する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.Recorder
	config     ClientConfig
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, config ClientConfig, logger *slog.Logger, recorder metrics.Recorder) *Client {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaultFetchTimeout
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = defaultSubmitTimeout
	}
	if config.MaxResponseSize <= 0 {
		config.MaxResponseSize = defaultMaxResponseSize
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    recorder,
		config:     config,
	}
}

// FetchPage は記事の1ページ分を返す。
// 全件取得 → 無効行の除外 → カテゴリ絞り込み（大文字小文字無視）→ ページ切り出しの順に処理する。
// 通信失敗・タイムアウト・JSONでない応答の場合はエラーを返さず、
// 空のItems・HasMore=false・Degraded=trueの結果を返す。
func (c *Client) FetchPage(ctx context.Context, page, limit int, category string) model.ArticlePage {
	all, err := c.FetchAll(ctx)
	if err != nil {
		return model.ArticlePage{Items: []model.Article{}, HasMore: false, Degraded: true}
	}

	filtered := FilterCategory(all, category)
	items, hasMore := Paginate(filtered, page, limit)
	return model.ArticlePage{Items: items, HasMore: hasMore}
}

// FetchAll は有効な記事の全件をストアの行順で返す。
// FetchPageと異なり、失敗はエラーとして返す。
func (c *Client) FetchAll(ctx context.Context) ([]model.Article, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome := classifyTransportError(err)
		c.metrics.RecordStoreRequest(metrics.OpFetch, outcome, time.Since(start))
		if outcome == metrics.OutcomeTimeout {
			c.logger.Error("記事ストアの応答がタイムアウトしました",
				slog.Duration("timeout", c.config.FetchTimeout),
			)
		} else {
			c.logger.Error("記事ストアへのリクエストに失敗しました",
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("記事ストアへのリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.RecordStoreRequest(metrics.OpFetch, metrics.OutcomeStatus, time.Since(start))
		c.logger.Error("記事ストアがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("記事ストアがステータス %d を返しました", resp.StatusCode)
	}

	body, err := c.readBody(resp.Body)
	if errors.Is(err, ErrResponseTooLarge) {
		c.metrics.RecordStoreRequest(metrics.OpFetch, metrics.OutcomeTooLarge, time.Since(start))
		c.logger.Error("記事ストアの応答が上限サイズを超えました。STORE_MAX_RESPONSE_SIZEを見直してください",
			slog.Int64("max_bytes", c.config.MaxResponseSize),
		)
		return nil, err
	}
	if err != nil {
		outcome := classifyTransportError(err)
		c.metrics.RecordStoreRequest(metrics.OpFetch, outcome, time.Since(start))
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}

	articles, ok, err := decodeCollection(body)
	if err != nil {
		c.metrics.RecordStoreRequest(metrics.OpFetch, metrics.OutcomeParse, time.Since(start))
		c.logger.Error("記事ストアがJSONでない応答を返しました。エンドポイントの公開設定を確認してください",
			slog.String("body_prefix", prefix(body, 100)),
		)
		return nil, err
	}
	if !ok {
		c.logger.Warn("記事ストアの応答形式が想定と異なるため空として扱います",
			slog.String("body_prefix", prefix(body, 100)),
		)
	}

	c.metrics.RecordStoreRequest(metrics.OpFetch, metrics.OutcomeSuccess, time.Since(start))
	return FilterValid(articles), nil
}

// FindByID は全件から指定IDの記事を探す。
// 見つからない場合は記事未検出エラー、読み込みに失敗した場合はストア利用不可エラーを返す。
func (c *Client) FindByID(ctx context.Context, id string) (*model.Article, error) {
	all, err := c.FetchAll(ctx)
	if err != nil {
		return nil, model.NewStoreUnavailableError()
	}
	for i := range all {
		if all[i].ID == id {
			article := all[i]
			return &article, nil
		}
	}
	return nil, model.NewArticleNotFoundError(id)
}

// Submit は下書きをエンドポイントへ投稿し、ストアが採番したIDを返す。
// 失敗時は必ずErrPublishFailedをラップしたエラーを返す。
func (c *Client) Submit(ctx context.Context, draft model.ArticleDraft) (string, error) {
	start := time.Now()

	payload, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("%w: 下書きのエンコードに失敗: %v", ErrPublishFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.SubmitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: HTTPリクエストの作成に失敗: %v", ErrPublishFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordStoreRequest(metrics.OpSubmit, classifyTransportError(err), time.Since(start))
		c.logger.Error("記事の投稿リクエストに失敗しました",
			slog.String("error", err.Error()),
			slog.String("title", draft.Title),
		)
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp.Body)
	if errors.Is(err, ErrResponseTooLarge) {
		c.metrics.RecordStoreRequest(metrics.OpSubmit, metrics.OutcomeTooLarge, time.Since(start))
		return "", fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if err != nil {
		c.metrics.RecordStoreRequest(metrics.OpSubmit, classifyTransportError(err), time.Since(start))
		return "", fmt.Errorf("%w: レスポンスボディの読み取りに失敗: %v", ErrPublishFailed, err)
	}

	var result submitResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.metrics.RecordStoreRequest(metrics.OpSubmit, metrics.OutcomeParse, time.Since(start))
		c.logger.Error("投稿応答がJSONではありません",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body_prefix", prefix(body, 100)),
		)
		return "", fmt.Errorf("%w: %w", ErrPublishFailed, ErrInvalidResponse)
	}

	if result.Result != "success" {
		reason := result.Error
		if reason == "" {
			reason = fmt.Sprintf("unexpected result %q (status %d)", result.Result, resp.StatusCode)
		}
		c.metrics.RecordStoreRequest(metrics.OpSubmit, metrics.OutcomeRejected, time.Since(start))
		c.logger.Error("記事ストアが投稿を拒否しました",
			slog.String("error", reason),
			slog.String("title", draft.Title),
		)
		return "", fmt.Errorf("%w: %s", ErrPublishFailed, reason)
	}

	c.metrics.RecordStoreRequest(metrics.OpSubmit, metrics.OutcomeSuccess, time.Since(start))
	c.logger.Info("記事を投稿しました",
		slog.String("id", string(result.ID)),
		slog.String("category", draft.Category),
	)
	return string(result.ID), nil
}

// readBody はMaxResponseSizeまで読み、超えていればErrResponseTooLargeを返す。
// 途中で切れたボディを解析させないよう、上限より1バイト多く読んで判定する。
func (c *Client) readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, c.config.MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.config.MaxResponseSize {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

// classifyTransportError は通信エラーをメトリクス用の結果分類に変換する。
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeTransport
}

// prefix はログ出力用にボディの先頭n文字を返す。
func prefix(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return string(body)
}
