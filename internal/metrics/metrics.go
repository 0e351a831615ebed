// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ストア呼び出しの操作種別。
const (
	OpFetch  = "fetch"
	OpSubmit = "submit"
)

// ストア呼び出しの結果分類。
const (
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
	OutcomeTransport = "transport"
	OutcomeStatus    = "status"
	OutcomeParse     = "parse"
	OutcomeRejected  = "rejected"
	OutcomeTooLarge  = "too_large"
)

// Recorder はメトリクス収集のインターフェース。
// ストアアダプタ、シートエンドポイント、インポーター、管理者認証から利用する。
type Recorder interface {
	RecordStoreRequest(op, outcome string, duration time.Duration)
	RecordSheetAppend(lockAcquired bool)
	RecordSchemaEnsured()
	RecordImportedItems(submitted, skipped int)
	RecordImportFailure(reason string)
	RecordLoginAttempt(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	storeRequests  *prometheus.CounterVec
	storeLatency   *prometheus.HistogramVec
	sheetAppends   *prometheus.CounterVec
	schemaEnsured  prometheus.Counter
	importedItems  *prometheus.CounterVec
	importFailures *prometheus.CounterVec
	loginAttempts  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelnews_store_requests_total",
			Help: "記事ストアへのリクエスト数（操作・結果別）",
		}, []string{"op", "outcome"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intelnews_store_request_duration_seconds",
			Help:    "記事ストアへのリクエストのレイテンシ（秒）",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"op"}),
		sheetAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelnews_sheet_appends_total",
			Help: "シートへの行追加数（ロック取得可否別）",
		}, []string{"lock_acquired"}),
		schemaEnsured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intelnews_sheet_schema_ensured_total",
			Help: "スキーマ（ヘッダー行）を作成・再作成した回数",
		}),
		importedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelnews_import_items_total",
			Help: "インポート対象記事数（投稿・スキップ別）",
		}, []string{"result"}),
		importFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelnews_import_failures_total",
			Help: "インポート失敗数（理由別）",
		}, []string{"reason"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelnews_admin_login_attempts_total",
			Help: "管理者ログイン試行数",
		}, []string{"success"}),
	}

	reg.MustRegister(
		c.storeRequests,
		c.storeLatency,
		c.sheetAppends,
		c.schemaEnsured,
		c.importedItems,
		c.importFailures,
		c.loginAttempts,
	)

	return c
}

// RecordStoreRequest はストアへのリクエスト結果とレイテンシを記録する。
func (c *Collector) RecordStoreRequest(op, outcome string, duration time.Duration) {
	c.storeRequests.WithLabelValues(op, outcome).Inc()
	c.storeLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordSheetAppend は行追加を記録する。
func (c *Collector) RecordSheetAppend(lockAcquired bool) {
	c.sheetAppends.WithLabelValues(strconv.FormatBool(lockAcquired)).Inc()
}

// RecordSchemaEnsured はスキーマ作成を記録する。
func (c *Collector) RecordSchemaEnsured() {
	c.schemaEnsured.Inc()
}

// RecordImportedItems はインポートで投稿・スキップした記事数を記録する。
func (c *Collector) RecordImportedItems(submitted, skipped int) {
	c.importedItems.WithLabelValues("submitted").Add(float64(submitted))
	c.importedItems.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordImportFailure はインポート失敗を記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFailures.WithLabelValues(reason).Inc()
}

// RecordLoginAttempt は管理者ログイン試行を記録する。
func (c *Collector) RecordLoginAttempt(success bool) {
	c.loginAttempts.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// Nop は何も記録しないRecorder。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordStoreRequest(string, string, time.Duration) {}
func (Nop) RecordSheetAppend(bool)                            {}
func (Nop) RecordSchemaEnsured()                              {}
func (Nop) RecordImportedItems(int, int)                      {}
func (Nop) RecordImportFailure(string)                        {}
func (Nop) RecordLoginAttempt(bool)                           {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
