package feed

import (
	"context"
	"sync"

	"github.com/hitoshi/intelnews/internal/model"
)

// ChunkSource は無限フィードのチャンクを返す。Serviceが実装する。
type ChunkSource interface {
	FeedChunk(ctx context.Context, k int) Chunk
}

// LoadResult はLoadMore1回分の結果。
type LoadResult struct {
	Added    int  // 今回追加された件数
	HasMore  bool // まだ続きがあるか
	Degraded bool // 取得に失敗したか。次回のLoadMoreで同じチャンクを取り直す
	Shared   bool // 実行中の取得に合流しただけで自分では取得していない
}

// Scroller はスクロールに応じて伸びていく無限フィードの状態を持つ。
//
// 取得中にLoadMoreが重ねて呼ばれた場合、後続の呼び出しは実行中の取得の完了を待ち、
// 同じチャンクを二重に取得しない。HasMoreがfalseになった後は取得しない。
type Scroller struct {
	source ChunkSource

	mu       sync.Mutex
	next     int
	items    []model.Article
	done     bool
	inflight chan struct{}
	last     LoadResult
}

// NewScroller は空のフィードから始まるScrollerを生成する。
func NewScroller(source ChunkSource) *Scroller {
	return &Scroller{
		source: source,
		next:   1,
		items:  []model.Article{},
	}
}

// LoadMore は次のチャンクを取得してフィードに追加する。
// 取得に失敗した場合はチャンク番号を進めず、次の呼び出しで同じチャンクを取り直す。
func (s *Scroller) LoadMore(ctx context.Context) LoadResult {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return LoadResult{HasMore: false}
	}
	if ch := s.inflight; ch != nil {
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return LoadResult{HasMore: true, Shared: true}
		}
		s.mu.Lock()
		result := s.last
		s.mu.Unlock()
		result.Added = 0
		result.Shared = true
		return result
	}

	ch := make(chan struct{})
	s.inflight = ch
	k := s.next
	s.mu.Unlock()

	// FeedChunkがパニックしても待機中の呼び出しを解放し、次回は同じチャンクを取り直す
	result := LoadResult{HasMore: true, Degraded: true}
	defer func() {
		s.mu.Lock()
		s.last = result
		s.inflight = nil
		close(ch)
		s.mu.Unlock()
	}()

	chunk := s.source.FeedChunk(ctx, k)
	if chunk.Degraded {
		return result
	}

	s.mu.Lock()
	s.items = append(s.items, chunk.Items...)
	s.next++
	s.done = !chunk.HasMore
	s.mu.Unlock()
	result = LoadResult{Added: len(chunk.Items), HasMore: chunk.HasMore}
	return result
}

// Items はこれまでに蓄積した記事のコピーを返す。
func (s *Scroller) Items() []model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Article, len(s.items))
	copy(out, s.items)
	return out
}

// Done は末尾まで読み終えたかを返す。
func (s *Scroller) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// NextChunk は次に取得するチャンク番号を返す。
func (s *Scroller) NextChunk() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
