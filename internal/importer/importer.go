// Package importer は外部のRSS/Atomフィードを定期的に取得し、
// 記事ストアへ下書きとして投稿するワーカーを提供する。
package importer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/intelnews/internal/metrics"
	"github.com/hitoshi/intelnews/internal/model"
)

// Publisher は記事ストアへの読み書きのインターフェース。store.Clientが実装する。
type Publisher interface {
	FetchAll(ctx context.Context) ([]model.Article, error)
	Submit(ctx context.Context, draft model.ArticleDraft) (string, error)
}

// Config はImporterの設定。
type Config struct {
	SourceURLs     []string
	Category       string
	MaxConcurrent  int
	MaxItemsPerRun int
}

// Summary は1サイクル分の取り込み結果。
type Summary struct {
	Sources   int
	Submitted int
	Skipped   int
	Failed    int
}

// SourceStatus は取り込み元の状態のスナップショット。
type SourceStatus struct {
	URL               string
	FeedURL           string
	ConsecutiveErrors int
	NextAttemptAt     time.Time
	Stopped           bool
	LastError         string
}

// Importer は取り込み元ごとの状態を持ち、サイクルごとに期限の来た取り込み元を処理する。
type Importer struct {
	publisher Publisher
	fetcher   FeedFetcher
	cleaner   TextCleaner
	metrics   metrics.Recorder
	logger    *slog.Logger
	config    Config
	now       func() time.Time

	mu      sync.Mutex
	sources []*sourceState
}

// New はImporterの新しいインスタンスを生成する。
// MaxConcurrentが0以下の場合は4、MaxItemsPerRunが0以下の場合は20を使う。
func New(publisher Publisher, fetcher FeedFetcher, cleaner TextCleaner, recorder metrics.Recorder, logger *slog.Logger, config Config) *Importer {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	if config.MaxItemsPerRun <= 0 {
		config.MaxItemsPerRun = 20
	}
	if config.Category == "" {
		config.Category = model.DefaultCategory
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	sources := make([]*sourceState, 0, len(config.SourceURLs))
	seen := make(map[string]struct{})
	for _, u := range config.SourceURLs {
		if _, ok := seen[u]; ok || u == "" {
			continue
		}
		seen[u] = struct{}{}
		sources = append(sources, &sourceState{URL: u})
	}

	return &Importer{
		publisher: publisher,
		fetcher:   fetcher,
		cleaner:   cleaner,
		metrics:   recorder,
		logger:    logger,
		config:    config,
		now:       time.Now,
		sources:   sources,
	}
}

// Start はintervalごとにRunOnceを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (im *Importer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	im.logger.Info("インポーターを開始しました",
		slog.Duration("interval", interval),
		slog.Int("sources", len(im.sources)),
		slog.Int("max_concurrency", im.config.MaxConcurrent),
	)

	im.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			im.logger.Info("インポーターを停止しました")
			return
		case <-ticker.C:
			im.runLogged(ctx)
		}
	}
}

func (im *Importer) runLogged(ctx context.Context) {
	if _, err := im.RunOnce(ctx); err != nil {
		im.logger.Error("インポートサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は期限の来た取り込み元を並行して処理する。
// 既存記事のタイトル（大文字小文字・空白の差を無視）と一致する記事は投稿しない。
// 既存記事を読めない場合は重複を判定できないため、何も投稿せずにエラーを返す。
func (im *Importer) RunOnce(ctx context.Context) (Summary, error) {
	now := im.now()
	due := im.dueSources(now)
	if len(due) == 0 {
		im.logger.Info("取り込み対象のフィードはありません")
		return Summary{}, nil
	}

	existing, err := im.publisher.FetchAll(ctx)
	if err != nil {
		im.metrics.RecordImportFailure("store_read")
		return Summary{}, err
	}
	titles := newTitleSet(existing)

	start := time.Now()
	im.logger.Info("インポートサイクルを開始します", slog.Int("source_count", len(due)))

	var (
		summaryMu sync.Mutex
		summary   = Summary{Sources: len(due)}
	)

	sem := make(chan struct{}, im.config.MaxConcurrent)
	var wg sync.WaitGroup
	for _, src := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(src *sourceState) {
			defer wg.Done()
			defer func() { <-sem }()

			r := im.importSource(ctx, src, titles)
			summaryMu.Lock()
			summary.Submitted += r.Submitted
			summary.Skipped += r.Skipped
			summary.Failed += r.Failed
			summaryMu.Unlock()
		}(src)
	}
	wg.Wait()

	im.metrics.RecordImportedItems(summary.Submitted, summary.Skipped)
	im.logger.Info("インポートサイクルが完了しました",
		slog.Int("source_count", summary.Sources),
		slog.Int("submitted", summary.Submitted),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return summary, nil
}

// importSource は取り込み元1件を取得して投稿し、状態を更新する。
func (im *Importer) importSource(ctx context.Context, src *sourceState, titles *titleSet) Summary {
	// Fetchはsrc.ResolvedURLを書き換えるため、作業用コピーに対して行う
	work := im.snapshot(src)
	parsed, err := im.fetcher.Fetch(ctx, &work)
	now := im.now()

	if err != nil {
		im.mu.Lock()
		src.ResolvedURL = work.ResolvedURL
		switch {
		case errors.Is(err, errStop):
			src.stop(err.Error())
			im.metrics.RecordImportFailure("stopped")
			im.logger.Warn("フィードの取り込みを停止します",
				slog.String("source_url", src.URL),
				slog.String("reason", err.Error()),
			)
		case errors.Is(err, errParse):
			src.parseFailed(now, err.Error())
			im.metrics.RecordImportFailure("parse")
			im.logger.Error("フィードのパースに失敗しました",
				slog.String("source_url", src.URL),
				slog.Int("parse_failures", src.ParseFailures),
				slog.String("error", err.Error()),
			)
		default:
			src.backoff(now, err.Error())
			im.metrics.RecordImportFailure("fetch")
			im.logger.Warn("フィードの取得にバックオフを適用します",
				slog.String("source_url", src.URL),
				slog.Int("consecutive_errors", src.ConsecutiveErrors),
				slog.Time("next_attempt_at", src.NextAttemptAt),
				slog.String("error", err.Error()),
			)
		}
		im.mu.Unlock()
		return Summary{Failed: 1}
	}

	im.mu.Lock()
	src.ResolvedURL = work.ResolvedURL
	src.succeed()
	im.mu.Unlock()

	items := parsed.Items
	if len(items) > im.config.MaxItemsPerRun {
		items = items[:im.config.MaxItemsPerRun]
	}

	var result Summary
	// フィードは新しい順に並ぶため、古いものから投稿してストアの行順を公開順に揃える
	for i := len(items) - 1; i >= 0; i-- {
		if items[i] == nil {
			continue
		}
		draft := itemToDraft(items[i], im.config.Category, im.cleaner)
		draft.Normalize()
		if err := draft.Validate(); err != nil {
			result.Skipped++
			continue
		}
		if !titles.reserve(draft.Title) {
			result.Skipped++
			continue
		}

		id, err := im.publisher.Submit(ctx, draft)
		if err != nil {
			titles.release(draft.Title)
			result.Failed++
			im.metrics.RecordImportFailure("submit")
			im.logger.Error("インポート記事の投稿に失敗しました",
				slog.String("source_url", src.URL),
				slog.String("title", draft.Title),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Submitted++
		im.logger.Info("記事をインポートしました",
			slog.String("source_url", src.URL),
			slog.String("id", id),
			slog.String("title", draft.Title),
		)
	}
	return result
}

func (im *Importer) dueSources(now time.Time) []*sourceState {
	im.mu.Lock()
	defer im.mu.Unlock()
	var due []*sourceState
	for _, s := range im.sources {
		if s.due(now) {
			due = append(due, s)
		}
	}
	return due
}

func (im *Importer) snapshot(src *sourceState) sourceState {
	im.mu.Lock()
	defer im.mu.Unlock()
	return *src
}

// Sources は取り込み元の状態を返す。
func (im *Importer) Sources() []SourceStatus {
	im.mu.Lock()
	defer im.mu.Unlock()
	out := make([]SourceStatus, 0, len(im.sources))
	for _, s := range im.sources {
		out = append(out, SourceStatus{
			URL:               s.URL,
			FeedURL:           s.feedURL(),
			ConsecutiveErrors: s.ConsecutiveErrors,
			NextAttemptAt:     s.NextAttemptAt,
			Stopped:           s.Stopped,
			LastError:         s.LastError,
		})
	}
	return out
}

// titleSet は投稿済み・投稿中のタイトルの集合。並行する取り込み元の間で共有する。
type titleSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newTitleSet(existing []model.Article) *titleSet {
	ts := &titleSet{keys: make(map[string]struct{}, len(existing))}
	for i := range existing {
		ts.keys[titleKey(existing[i].Title)] = struct{}{}
	}
	return ts
}

// reserve は未登録なら登録してtrueを返す。登録済みならfalse。
func (ts *titleSet) reserve(title string) bool {
	key := titleKey(title)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, ok := ts.keys[key]; ok {
		return false
	}
	ts.keys[key] = struct{}{}
	return true
}

func (ts *titleSet) release(title string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.keys, titleKey(title))
}
