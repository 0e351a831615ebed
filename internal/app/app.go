package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/intelnews/internal/auth"
	"github.com/hitoshi/intelnews/internal/config"
	"github.com/hitoshi/intelnews/internal/database"
	"github.com/hitoshi/intelnews/internal/feed"
	"github.com/hitoshi/intelnews/internal/handler"
	"github.com/hitoshi/intelnews/internal/importer"
	"github.com/hitoshi/intelnews/internal/logger"
	"github.com/hitoshi/intelnews/internal/metrics"
	"github.com/hitoshi/intelnews/internal/middleware"
	"github.com/hitoshi/intelnews/internal/model"
	"github.com/hitoshi/intelnews/internal/repository"
	"github.com/hitoshi/intelnews/internal/security"
	"github.com/hitoshi/intelnews/internal/sheet"
	"github.com/hitoshi/intelnews/internal/store"
)

const (
	shutdownTimeout        = 30 * time.Second
	dbConnectTimeout       = 10 * time.Second
	sessionCleanupInterval = 10 * time.Minute
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。wはログの出力先で、exportモードではJSONの書き出し先になる。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	logOut := w
	if cmd == CommandExport {
		// 書き出し先をJSONだけにするため、ログは標準エラーへ出す
		logOut = os.Stderr
	}

	cfg, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandServe:
		return runServe(ctx, cfg)
	case CommandStore:
		return runStore(ctx, cfg)
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandExport:
		return runExport(ctx, cfg, w)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// newMetricsRegistry はアプリケーションメトリクスとランタイムメトリクスを登録したレジストリを返す。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newStoreClient は記事ストアエンドポイントのクライアントを生成する。
// タイムアウトは呼び出しごとにコンテキストで制御する。
func newStoreClient(cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder) *store.Client {
	return store.NewClient(&http.Client{}, store.ClientConfig{
		Endpoint:        cfg.StoreEndpointURL,
		FetchTimeout:    cfg.StoreFetchTimeout,
		SubmitTimeout:   cfg.StoreSubmitTimeout,
		MaxResponseSize: cfg.StoreMaxResponseSize,
	}, logger, recorder)
}

// portal はserveモードで組み立てた依存関係。
type portal struct {
	router      http.Handler
	sessions    *auth.MemorySessionStore
	rateLimiter *middleware.RateLimiter
}

// newPortal はポータルAPIの依存関係をワイヤリングする。
// metricsHandlerがnilの場合は/metricsを公開しない。
func newPortal(cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder, metricsHandler http.Handler) *portal {
	client := newStoreClient(cfg, logger, recorder)
	feedService := feed.NewService(client, cfg.Categories, logger)

	sessions := auth.NewMemorySessionStore()
	authService := auth.NewService(sessions, auth.ServiceConfig{
		PasswordHash:  cfg.AdminPasswordHash,
		SessionMaxAge: cfg.SessionMaxAge,
	}, recorder, logger)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(
		cfg.RateLimitGeneral, cfg.RateLimitLogin, cfg.RateLimitSubmit,
	))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		SessionFinder:     sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		TrustProxy:  cfg.TrustProxy,

		News: client,
		Feed: feedService,

		AuthService: authService,
		Publisher:   client,
		AdminConfig: handler.AdminHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		MetricsHandler: metricsHandler,
	})

	return &portal{router: router, sessions: sessions, rateLimiter: rateLimiter}
}

// runServe はポータルAPIサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.RequirePortal(true); err != nil {
		return err
	}

	reg, recorder := newMetricsRegistry()
	p := newPortal(cfg, slog.Default(), recorder, metrics.Handler(reg))
	defer p.rateLimiter.Stop()

	go p.sessions.StartCleanup(ctx, sessionCleanupInterval, slog.Default())

	// ストアの書き込み待ち（最大30秒）より長くとる
	return serveHTTP(ctx, newHTTPServer(cfg.ServerPort, p.router, 45*time.Second))
}

// newSheetRouter は記事ストアエンドポイントのルーティングを構成する。
// /metricsのみここで追加し、それ以外はsheetパッケージのルーターに委ねる。
func newSheetRouter(db *sql.DB, cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder, metricsHandler http.Handler) http.Handler {
	service := sheet.NewService(
		repository.NewPostgresArticleRepo(db),
		database.NewSchemaGuard(db),
		repository.NewPostgresAppendLock(db),
		security.NewTextSanitizer(),
		recorder,
		logger,
		cfg.StoreLockTimeout,
	)
	sheetRouter := sheet.NewRouter(sheet.NewHandler(service, logger), db,
		middleware.NewRecoveryMiddleware(logger),
		middleware.NewLoggingMiddleware(logger),
	)

	r := chi.NewRouter()
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.Mount("/", sheetRouter)
	return r
}

// runStore はPostgreSQLをバックエンドとする記事ストアエンドポイントとして起動する。
func runStore(ctx context.Context, cfg *config.Config) error {
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	db, err := database.OpenAndPing(ctx, cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (store)")

	reg, recorder := newMetricsRegistry()
	router := newSheetRouter(db, cfg, slog.Default(), recorder, metrics.Handler(reg))
	return serveHTTP(ctx, newHTTPServer(cfg.ServerPort, router, 30*time.Second))
}

// newImporter はRSSインポーターを生成する。取得はSSRF対策済みのクライアントで行う。
func newImporter(cfg *config.Config, publisher importer.Publisher, logger *slog.Logger, recorder metrics.Recorder) *importer.Importer {
	fetcher := importer.NewFetcher(security.NewSSRFGuard(), logger, cfg.ImportTimeout, cfg.ImportMaxSize)
	return importer.New(publisher, fetcher, security.NewTextSanitizer(), recorder, logger, importer.Config{
		SourceURLs:     cfg.ImportFeedURLs,
		Category:       cfg.ImportCategory,
		MaxConcurrent:  cfg.ImportMaxConcurrent,
		MaxItemsPerRun: cfg.ImportMaxItemsPerRun,
	})
}

// newWorkerRouter はワーカーの運用エンドポイント（/health, /metrics）を構成する。
func newWorkerRouter(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok"}`)
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	return r
}

// runWorker はRSSインポーターとして起動する。
// 取り込みはメインgoroutineで実行し、運用エンドポイントを別goroutineで公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if err := cfg.RequirePortal(false); err != nil {
		return err
	}
	if len(cfg.ImportFeedURLs) == 0 {
		return fmt.Errorf("required environment variables are not set: [IMPORT_FEED_URLS]")
	}

	reg, recorder := newMetricsRegistry()
	client := newStoreClient(cfg, slog.Default(), recorder)
	im := newImporter(cfg, client, slog.Default(), recorder)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		err := serveHTTP(ctx, newHTTPServer(cfg.ServerPort, newWorkerRouter(metrics.Handler(reg)), 15*time.Second))
		if err != nil {
			// 運用エンドポイントが使えない場合は取り込みも止める
			cancel()
		}
		serverErr <- err
	}()

	im.Start(ctx, cfg.ImportInterval)

	cancel()
	if err := <-serverErr; err != nil {
		return err
	}
	slog.Info("worker stopped gracefully")
	return nil
}

// exportDocument はexportモードの出力。
type exportDocument struct {
	ExportedAt time.Time       `json:"exported_at"`
	Home       *feed.HomeView  `json:"home"`
	Feed       []model.Article `json:"feed"`
	Degraded   bool            `json:"degraded"`
}

// errPartialExport は縮退した取得があり出力が完全でないことを示す。
var errPartialExport = errors.New("store was unavailable; exported document is partial")

// runExport はトップページと無限フィードの全チャンクを組み立ててoutにJSONで書き出す。
// 途中で取得が縮退した場合はそこまでの内容を書き出した上でerrPartialExportを返す。
func runExport(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if err := cfg.RequirePortal(false); err != nil {
		return err
	}

	client := newStoreClient(cfg, slog.Default(), nil)
	service := feed.NewService(client, cfg.Categories, slog.Default())

	home := service.Home(ctx)
	degraded := home.Degraded

	scroller := feed.NewScroller(service)
	for !scroller.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if result := scroller.LoadMore(ctx); result.Degraded {
			degraded = true
			break
		}
	}

	items := scroller.Items()
	if items == nil {
		items = []model.Article{}
	}
	doc := exportDocument{
		ExportedAt: time.Now().UTC(),
		Home:       home,
		Feed:       items,
		Degraded:   degraded,
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	slog.Info("export completed",
		slog.Int("feed_items", len(items)),
		slog.Bool("degraded", degraded),
	)
	if degraded {
		return errPartialExport
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

func newHTTPServer(port string, h http.Handler, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

// serveHTTP はserverを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
// 起動に失敗した場合はそのエラーを返す。
func serveHTTP(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
