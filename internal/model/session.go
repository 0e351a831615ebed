package model

import "time"

// Session は管理者のログインセッションを表す。
type Session struct {
	ID        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが期限切れかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
