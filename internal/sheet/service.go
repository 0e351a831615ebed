// Package sheet は記事ストアのエンドポイント本体を提供する。
// 行の一覧取得と追加のみを持つ、追記専用の表形式ストア。
package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/intelnews/internal/metrics"
	"github.com/hitoshi/intelnews/internal/model"
	"github.com/hitoshi/intelnews/internal/repository"
)

// DefaultLockWait は行追加ロックの既定の待ち時間。
const DefaultLockWait = 10 * time.Second

// ErrUnpublishableTitle はHTML除去後のタイトルが空かプレースホルダになったことを示す。
// そのまま保存すると一覧から除外され続けるため、追加せずに失敗として返す。
var ErrUnpublishableTitle = errors.New("title is empty after sanitizing")

// SchemaEnsurer は記事テーブルの存在を保証するインターフェース。
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// DraftSanitizer は投稿された下書きからHTMLを除去するインターフェース。
type DraftSanitizer interface {
	Draft(d model.ArticleDraft) model.ArticleDraft
}

// Service はシートエンドポイントの読み書きを行う。
type Service struct {
	repo      repository.ArticleRepository
	schema    SchemaEnsurer
	locker    repository.AppendLocker
	sanitizer DraftSanitizer
	recorder  metrics.Recorder
	logger    *slog.Logger
	lockWait  time.Duration

	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	ensured bool
}

// NewService はServiceを生成する。lockWaitが0以下の場合はDefaultLockWaitを使う。
func NewService(
	repo repository.ArticleRepository,
	schema SchemaEnsurer,
	locker repository.AppendLocker,
	sanitizer DraftSanitizer,
	recorder metrics.Recorder,
	logger *slog.Logger,
	lockWait time.Duration,
) *Service {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		schema:    schema,
		locker:    locker,
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
		lockWait:  lockWait,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// List は全行を追加順で返す。
func (s *Service) List(ctx context.Context) ([]model.Article, error) {
	var articles []model.Article
	err := s.withSchema(ctx, func() error {
		var err error
		articles, err = s.repo.ListAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return articles, nil
}

// Append は下書きを新しい行として追加し、採番したidを返す。
// idとtimestampはこのストアが付与し、クライアントが送った値は使わない。
func (s *Service) Append(ctx context.Context, draft model.ArticleDraft) (string, error) {
	d := s.sanitizer.Draft(draft)
	article := &model.Article{
		ID:          s.newID(),
		Timestamp:   s.now().UTC().Format(model.TimestampLayout),
		Title:       d.Title,
		Tagline:     d.Tagline,
		Description: d.Description,
		Image:       d.Image,
		Category:    d.Category,
		IsFeatured:  d.IsFeatured,
		IsHeading:   d.IsHeading,
	}
	if !article.IsValid() {
		s.logger.Warn("HTML除去後のタイトルが無効なため追加しません",
			slog.String("title", draft.Title),
		)
		return "", ErrUnpublishableTitle
	}

	release, acquired, err := s.locker.Acquire(ctx, s.lockWait)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Warn("行追加ロックの取得でエラーが発生しました。ロックなしで追加します",
			slog.String("error", err.Error()),
		)
	} else if !acquired {
		s.logger.Warn("行追加ロックを待ち時間内に取得できませんでした。ロックなしで追加します",
			slog.Duration("wait", s.lockWait),
		)
	}
	defer release()
	s.recorder.RecordSheetAppend(acquired)

	if err := s.withSchema(ctx, func() error {
		return s.repo.Append(ctx, article)
	}); err != nil {
		return "", err
	}

	s.logger.Info("記事行を追加しました",
		slog.String("id", article.ID),
		slog.String("category", article.Category),
	)
	return article.ID, nil
}

// withSchema はスキーマを保証してからopを実行する。
// 実行中にテーブルが消えていた場合は保証状態をリセットして1回だけ再試行する。
func (s *Service) withSchema(ctx context.Context, op func() error) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	err := op()
	if !errors.Is(err, repository.ErrSchemaMissing) {
		return err
	}

	s.logger.Warn("記事テーブルが見つかりません。再作成して再試行します")
	s.resetSchema()
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	return op()
}

func (s *Service) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	if err := s.schema.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("スキーマの準備に失敗しました: %w", err)
	}
	s.ensured = true
	s.recorder.RecordSchemaEnsured()
	return nil
}

func (s *Service) resetSchema() {
	s.mu.Lock()
	s.ensured = false
	s.mu.Unlock()
}
