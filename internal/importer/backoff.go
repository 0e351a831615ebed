package importer

import (
	"fmt"
	"time"
)

// statusClass はHTTPステータスコードの扱いの分類。
type statusClass int

const (
	statusOK statusClass = iota
	// statusStop は取り込みを止めるべきステータス（404/410/401/403）。
	statusStop
	// statusBackoff は間隔を空けて再試行すべきステータス（429/5xx）。
	statusBackoff
	// statusUnexpected はそれ以外。バックオフとして扱う。
	statusUnexpected
)

const (
	initialBackoff = 30 * time.Minute
	maxBackoff     = 12 * time.Hour
	// parseFailureLimit は連続でパースに失敗した場合に取り込みを止める回数。
	parseFailureLimit = 10
)

// classifyStatus はHTTPステータスコードを分類する。
func classifyStatus(code int) statusClass {
	switch {
	case code >= 200 && code <= 299:
		return statusOK
	case code == 404, code == 410, code == 401, code == 403:
		return statusStop
	case code == 429, code >= 500:
		return statusBackoff
	default:
		return statusUnexpected
	}
}

// backoffDelay は連続失敗回数から次回までの待ち時間を求める。
// 1回目は30分で、以降2倍ずつ伸び、12時間で頭打ちになる。
func backoffDelay(consecutiveErrors int) time.Duration {
	if consecutiveErrors < 1 {
		return 0
	}
	delay := initialBackoff
	for i := 1; i < consecutiveErrors; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// sourceState はインポート元1件の取り込み状態。プロセス内でのみ保持する。
type sourceState struct {
	URL               string
	ResolvedURL       string // HTMLから見つけたフィードURL。直接フィードなら空
	ConsecutiveErrors int
	ParseFailures     int
	NextAttemptAt     time.Time
	Stopped           bool
	LastError         string
}

// due はnow時点で取り込み対象かを返す。
func (s *sourceState) due(now time.Time) bool {
	return !s.Stopped && !now.Before(s.NextAttemptAt)
}

// feedURL は実際に取得するURLを返す。
func (s *sourceState) feedURL() string {
	if s.ResolvedURL != "" {
		return s.ResolvedURL
	}
	return s.URL
}

func (s *sourceState) succeed() {
	s.ConsecutiveErrors = 0
	s.ParseFailures = 0
	s.LastError = ""
	s.NextAttemptAt = time.Time{}
}

func (s *sourceState) backoff(now time.Time, reason string) {
	s.ConsecutiveErrors++
	s.LastError = reason
	s.NextAttemptAt = now.Add(backoffDelay(s.ConsecutiveErrors))
}

func (s *sourceState) stop(reason string) {
	s.Stopped = true
	s.LastError = reason
}

func (s *sourceState) parseFailed(now time.Time, reason string) {
	s.ParseFailures++
	if s.ParseFailures >= parseFailureLimit {
		s.stop(fmt.Sprintf("パース失敗が%d回連続したため停止: %s", s.ParseFailures, reason))
		return
	}
	s.backoff(now, fmt.Sprintf("パース失敗 (%d回連続): %s", s.ParseFailures, reason))
}
