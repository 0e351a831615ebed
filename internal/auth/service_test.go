package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/intelnews/internal/metrics"
	"github.com/hitoshi/intelnews/internal/model"
)

// --- モック定義 ---

type mockSessionStore struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionStore) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionStore) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionStore) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type loginRecorder struct {
	metrics.Nop
	attempts []bool
}

func (r *loginRecorder) RecordLoginAttempt(success bool) { r.attempts = append(r.attempts, success) }

func hashPassword(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("ハッシュ生成に失敗: %v", err)
	}
	return string(h)
}

func newTestService(t *testing.T, store SessionStore, rec metrics.Recorder) *Service {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewService(store, ServiceConfig{
		PasswordHash:  hashPassword(t, "correct horse"),
		SessionMaxAge: 3600,
	}, rec, logger)
}

// --- テスト ---

func TestLogin_Success(t *testing.T) {
	var saved *model.Session
	store := &mockSessionStore{createFn: func(_ context.Context, s *model.Session) error {
		saved = s
		return nil
	}}
	rec := &loginRecorder{}
	svc := newTestService(t, store, rec)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	session, err := svc.Login(context.Background(), "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.ID == "" || saved == nil || saved.ID != session.ID {
		t.Errorf("セッションが保存されていない: %+v", saved)
	}
	if !session.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", session.ExpiresAt)
	}
	if len(rec.attempts) != 1 || !rec.attempts[0] {
		t.Errorf("attempts = %v", rec.attempts)
	}
}

func TestLogin_UniqueSessionIDs(t *testing.T) {
	svc := newTestService(t, &mockSessionStore{}, nil)
	a, _ := svc.Login(context.Background(), "correct horse")
	b, _ := svc.Login(context.Background(), "correct horse")
	if a.ID == b.ID {
		t.Error("ログインごとに別のセッションIDを発行する")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"不一致", "wrong"},
		{"空", ""},
		{"大文字小文字違い", "Correct Horse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockSessionStore{createFn: func(context.Context, *model.Session) error {
				t.Error("失敗時はセッションを作らない")
				return nil
			}}
			rec := &loginRecorder{}
			svc := newTestService(t, store, rec)

			_, err := svc.Login(context.Background(), tt.secret)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
			if len(rec.attempts) != 1 || rec.attempts[0] {
				t.Errorf("attempts = %v", rec.attempts)
			}
		})
	}
}

func TestLogin_MalformedHash(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := NewService(&mockSessionStore{}, ServiceConfig{PasswordHash: "plaintext"}, nil, logger)

	_, err := svc.Login(context.Background(), "plaintext")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want configuration error", err)
	}
}

func TestLogin_StoreFailure(t *testing.T) {
	store := &mockSessionStore{createFn: func(context.Context, *model.Session) error {
		return errors.New("full")
	}}
	svc := newTestService(t, store, nil)
	if _, err := svc.Login(context.Background(), "correct horse"); err == nil {
		t.Error("保存失敗はエラー")
	}
}

func TestLogout(t *testing.T) {
	var deleted string
	store := &mockSessionStore{deleteByIDFn: func(_ context.Context, id string) error {
		deleted = id
		return nil
	}}
	svc := newTestService(t, store, nil)

	if err := svc.Logout(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if deleted != "sess-1" {
		t.Errorf("deleted = %q", deleted)
	}
	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Error("空のセッションIDはエラー")
	}
}

func TestCurrentSession(t *testing.T) {
	store := &mockSessionStore{findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
		if id == "valid" {
			return &model.Session{ID: id}, nil
		}
		return nil, nil
	}}
	svc := newTestService(t, store, nil)

	if s, err := svc.CurrentSession(context.Background(), "valid"); err != nil || s.ID != "valid" {
		t.Errorf("valid: s=%v err=%v", s, err)
	}
	for _, id := range []string{"", "unknown"} {
		if _, err := svc.CurrentSession(context.Background(), id); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("%q: err = %v, want ErrSessionNotFound", id, err)
		}
	}
}

func TestService_WithMemoryStore(t *testing.T) {
	store := NewMemorySessionStore()
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	session, err := svc.Login(ctx, "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.CurrentSession(ctx, session.ID); err != nil {
		t.Fatalf("ログイン直後のセッションが見つからない: %v", err)
	}
	if err := svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.CurrentSession(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ログアウト後: err = %v", err)
	}
}
