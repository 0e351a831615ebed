package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/intelnews/internal/model"
)

// MemorySessionStore はメモリ上で管理者セッションを保持する。
// プロセスの再起動でセッションは失われ、再ログインが必要になる。
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	now      func() time.Time
}

// NewMemorySessionStore はMemorySessionStoreを生成する。
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]model.Session),
		now:      time.Now,
	}
}

// Create はセッションを保存する。
func (s *MemorySessionStore) Create(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

// FindByID は有効なセッションを返す。存在しないか期限切れの場合はnilを返す。
func (s *MemorySessionStore) FindByID(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || session.Expired(s.now()) {
		return nil, nil
	}
	return &session, nil
}

// DeleteByID はセッションを削除する。存在しない場合も成功とする。
func (s *MemorySessionStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (s *MemorySessionStore) DeleteExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// StartCleanup はinterval間隔で期限切れセッションを削除する。ctxがキャンセルされるまでブロックする。
func (s *MemorySessionStore) StartCleanup(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.DeleteExpired(); n > 0 {
				logger.Info("期限切れセッションを削除しました", slog.Int("count", n))
			}
		}
	}
}
