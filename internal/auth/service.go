// Package auth は管理者認証とセッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/intelnews/internal/metrics"
	"github.com/hitoshi/intelnews/internal/model"
)

var (
	// ErrInvalidCredentials は管理者パスワードが一致しないことを示す。
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	// ErrSessionNotFound はセッションが存在しないか期限切れであることを示す。
	ErrSessionNotFound = errors.New("session not found or expired")
)

// SessionStore はセッションの保存先のインターフェース。
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	PasswordHash  string // 管理者パスワードのbcryptハッシュ
	SessionMaxAge int    // セッション有効期間（秒）
}

// Service は管理者のログイン・ログアウトを扱う。
type Service struct {
	sessions SessionStore
	config   ServiceConfig
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(sessions SessionStore, config ServiceConfig, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		sessions: sessions,
		config:   config,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Login は管理者パスワードを検証し、新しいセッションを発行する。
func (s *Service) Login(ctx context.Context, secret string) (*model.Session, error) {
	if secret == "" {
		s.recorder.RecordLoginAttempt(false)
		return nil, ErrInvalidCredentials
	}

	err := bcrypt.CompareHashAndPassword([]byte(s.config.PasswordHash), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		s.recorder.RecordLoginAttempt(false)
		s.logger.Warn("管理者ログインに失敗しました")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.recorder.RecordLoginAttempt(false)
		return nil, fmt.Errorf("パスワードハッシュの検証に失敗しました: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        uuid.New().String(),
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.recorder.RecordLoginAttempt(true)
	s.logger.Info("管理者がログインしました", slog.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("管理者がログアウトしました")
	return nil
}

// CurrentSession は有効なセッションを返す。存在しない場合はErrSessionNotFoundを返す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
