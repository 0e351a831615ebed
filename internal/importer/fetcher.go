package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

var (
	// errStop は取り込み元を停止すべき失敗（SSRF拒否・404等）を示す。
	errStop = errors.New("source stopped")
	// errParse はフィードとして解釈できなかったことを示す。
	errParse = errors.New("feed parse failed")
	// errBackoff は時間をおいて再試行すべき失敗を示す。
	errBackoff = errors.New("source backoff")
)

// URLGuard は取得先URLの検証と、安全なHTTPクライアントの生成を行う。
// security.SSRFGuardが実装する。
type URLGuard interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// FeedFetcher は取り込み元1件からフィードを取得する。
type FeedFetcher interface {
	Fetch(ctx context.Context, src *sourceState) (*gofeed.Feed, error)
}

// Fetcher はHTTPでフィードを取得し、gofeedでパースする。
// 取得先がHTMLページの場合は<link rel="alternate">からフィードURLを探して取り直す。
type Fetcher struct {
	guard       URLGuard
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(guard URLGuard, logger *slog.Logger, timeout time.Duration, maxBodySize int64) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxBodySize <= 0 {
		maxBodySize = 5 << 20
	}
	return &Fetcher{
		guard:       guard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch は取り込み元のフィードを取得する。
// 返すエラーはerrStop・errParse・errBackoffのいずれかをラップする。
// HTMLから見つけたフィードURLはsrc.ResolvedURLに記録し、次回以降はそちらを直接取得する。
func (f *Fetcher) Fetch(ctx context.Context, src *sourceState) (*gofeed.Feed, error) {
	target := src.feedURL()
	contentType, body, err := f.get(ctx, target)
	if err != nil {
		return nil, err
	}

	if !looksLikeFeed(contentType, body) && strings.Contains(mediaTypeOf(contentType), "html") {
		link, ok := pickFeedLink(discoverFeedLinks(body, target), target)
		if !ok {
			return nil, fmt.Errorf("%w: HTMLにフィードへのリンクがありません: %s", errParse, target)
		}
		f.logger.Info("HTMLからフィードURLを検出しました",
			slog.String("source_url", src.URL),
			slog.String("feed_url", link.URL),
		)
		contentType, body, err = f.get(ctx, link.URL)
		if err != nil {
			return nil, err
		}
		src.ResolvedURL = link.URL
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errParse, err)
	}
	return parsed, nil
}

// get はURLを検証してから取得し、Content-Typeとボディを返す。
func (f *Fetcher) get(ctx context.Context, target string) (string, []byte, error) {
	if err := f.guard.ValidateURL(target); err != nil {
		return "", nil, fmt.Errorf("%w: SSRF検証に失敗: %v", errStop, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", nil, fmt.Errorf("%w: リクエスト作成に失敗: %v", errStop, err)
	}
	req.Header.Set("User-Agent", "IntelNews/1.0 Importer")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.8, */*;q=0.5")

	start := time.Now()
	resp, err := f.guard.NewSafeClient(f.timeout, f.maxBodySize).Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: HTTPリクエスト失敗: %v", errBackoff, err)
	}
	defer resp.Body.Close()

	switch classifyStatus(resp.StatusCode) {
	case statusOK:
	case statusStop:
		return "", nil, fmt.Errorf("%w: HTTPステータス %d", errStop, resp.StatusCode)
	default:
		return "", nil, fmt.Errorf("%w: HTTPステータス %d", errBackoff, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return "", nil, fmt.Errorf("%w: レスポンス読み取り失敗: %v", errBackoff, err)
	}

	f.logger.Debug("フィードを取得しました",
		slog.String("url", target),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return resp.Header.Get("Content-Type"), body, nil
}
