package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// appendLockKey は記事追加用のアドバイザリロックのキー。
const appendLockKey int64 = 0x696e74656c // "intel"

// defaultLockPollInterval はロック取得を再試行する間隔。
const defaultLockPollInterval = 100 * time.Millisecond

// PostgresAppendLock はPostgreSQLのセッションレベルのアドバイザリロックで行追加を直列化する。
// 複数のエンドポイントプロセスが同じDBを使う場合にも有効。
type PostgresAppendLock struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewPostgresAppendLock はPostgresAppendLockを生成する。
func NewPostgresAppendLock(db *sql.DB) *PostgresAppendLock {
	return &PostgresAppendLock{db: db, pollInterval: defaultLockPollInterval}
}

// Acquire はwait以内にアドバイザリロックの取得を試みる。
// ロックは接続に紐づくため、取得した接続を解放関数の中でアンロック後に返却する。
func (l *PostgresAppendLock) Acquire(ctx context.Context, wait time.Duration) (func(), bool, error) {
	noop := func() {}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	conn, err := l.db.Conn(waitCtx)
	if err != nil {
		return noop, false, fmt.Errorf("ロック用の接続取得に失敗しました: %w", err)
	}

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		var ok bool
		if err := conn.QueryRowContext(waitCtx, `SELECT pg_try_advisory_lock($1)`, appendLockKey).Scan(&ok); err != nil {
			conn.Close()
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return noop, false, nil
			}
			return noop, false, fmt.Errorf("アドバイザリロックの取得に失敗しました: %w", err)
		}
		if ok {
			release := func() {
				// 呼び出し元のコンテキストがキャンセル済みでも確実にアンロックする
				unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, appendLockKey)
				conn.Close()
			}
			return release, true, nil
		}

		select {
		case <-waitCtx.Done():
			conn.Close()
			if ctx.Err() != nil {
				return noop, false, ctx.Err()
			}
			return noop, false, nil
		case <-ticker.C:
		}
	}
}
