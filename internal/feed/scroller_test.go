package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/intelnews/internal/model"
)

// chunkSourceFunc は関数をChunkSourceとして使うためのアダプタ。
type chunkSourceFunc func(ctx context.Context, k int) Chunk

func (f chunkSourceFunc) FeedChunk(ctx context.Context, k int) Chunk {
	return f(ctx, k)
}

func chunkOf(k, n int, hasMore bool) Chunk {
	items := make([]model.Article, n)
	for i := range items {
		items[i] = model.Article{ID: fmt.Sprintf("c%d-%d", k, i), Title: "t"}
	}
	return Chunk{Items: items, HasMore: hasMore}
}

func TestScroller_AccumulatesUntilNoMore(t *testing.T) {
	var requested []int
	source := chunkSourceFunc(func(_ context.Context, k int) Chunk {
		requested = append(requested, k)
		return chunkOf(k, 6, k < 3)
	})

	s := NewScroller(source)
	if len(s.Items()) != 0 {
		t.Fatal("初期状態は空")
	}

	for i := 0; i < 5; i++ {
		s.LoadMore(context.Background())
	}

	if fmt.Sprint(requested) != "[1 2 3]" {
		t.Errorf("requested = %v, want [1 2 3]", requested)
	}
	if got := len(s.Items()); got != 18 {
		t.Errorf("len(Items) = %d, want 18", got)
	}
	if !s.Done() {
		t.Error("Done should be true")
	}
	if res := s.LoadMore(context.Background()); res.HasMore || res.Added != 0 {
		t.Errorf("完了後のLoadMore = %+v", res)
	}
}

func TestScroller_DegradedRetriesSameChunk(t *testing.T) {
	var requested []int
	fail := true
	source := chunkSourceFunc(func(_ context.Context, k int) Chunk {
		requested = append(requested, k)
		if fail {
			return Chunk{Items: []model.Article{}, Degraded: true}
		}
		return chunkOf(k, 2, false)
	})

	s := NewScroller(source)
	res := s.LoadMore(context.Background())
	if !res.Degraded || res.Added != 0 {
		t.Errorf("res = %+v, want degraded", res)
	}
	if s.Done() {
		t.Error("失敗ではフィードを終了しない")
	}

	fail = false
	res = s.LoadMore(context.Background())
	if res.Added != 2 || res.HasMore {
		t.Errorf("res = %+v", res)
	}
	if fmt.Sprint(requested) != "[1 1]" {
		t.Errorf("requested = %v, want [1 1]", requested)
	}
}

func TestScroller_CoalescesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	source := chunkSourceFunc(func(_ context.Context, k int) Chunk {
		calls.Add(1)
		<-release
		return chunkOf(k, 6, true)
	})

	s := NewScroller(source)

	const callers = 5
	results := make([]LoadResult, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = s.LoadMore(context.Background())
	}()

	// 最初の呼び出しが取得を始めるまで待つ
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("取得が開始されない")
		}
		time.Sleep(time.Millisecond)
	}

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.LoadMore(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("取得回数 = %d, want 1", got)
	}
	if got := len(s.Items()); got != 6 {
		t.Errorf("len(Items) = %d, want 6", got)
	}
	if results[0].Added != 6 || results[0].Shared {
		t.Errorf("results[0] = %+v", results[0])
	}
	if s.NextChunk() != 2 {
		t.Errorf("NextChunk = %d, want 2", s.NextChunk())
	}
}

func TestScroller_WaiterHonorsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	source := chunkSourceFunc(func(_ context.Context, k int) Chunk {
		close(started)
		<-release
		return chunkOf(k, 1, true)
	})

	s := NewScroller(source)
	go s.LoadMore(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := s.LoadMore(ctx)
	if !res.Shared || res.Added != 0 {
		t.Errorf("res = %+v, want shared with nothing added", res)
	}
}

func TestScroller_PanickingSourceReleasesWaiters(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	source := chunkSourceFunc(func(_ context.Context, k int) Chunk {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			panic("chunk source exploded")
		}
		return chunkOf(k, 2, false)
	})
	s := NewScroller(source)

	panicked := make(chan any, 1)
	go func() {
		defer func() { panicked <- recover() }()
		s.LoadMore(context.Background())
	}()
	<-started

	// 取得中に合流した呼び出しはパニック後に縮退として解放される
	waiter := make(chan LoadResult, 1)
	go func() { waiter <- s.LoadMore(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	if p := <-panicked; p == nil {
		t.Fatal("パニックは呼び出し元へ伝わる")
	}
	select {
	case res := <-waiter:
		if !res.Shared || !res.Degraded {
			t.Errorf("waiter = %+v, want shared degraded", res)
		}
	case <-time.After(time.Second):
		t.Fatal("合流した呼び出しが解放されない")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res := s.LoadMore(ctx)
	if res.Shared || res.Added != 2 || res.HasMore {
		t.Errorf("res = %+v, want fresh load of the same chunk", res)
	}
	if s.NextChunk() != 2 || !s.Done() {
		t.Errorf("next = %d done = %v", s.NextChunk(), s.Done())
	}
}
