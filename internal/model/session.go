package model

import "time"

// Причины, по которым сессия помечается истёкшей.
const (
	SessionReasonRotated       = "rotated"
	SessionReasonRevoked       = "revoked"
	SessionReasonRevokedAll    = "revoked_all"
	SessionReasonLimitExceeded = "limit_exceeded"
)

// Session — серверная запись о refresh-токене.
// В БД хранится только sha256-хэш токена, сам токен остаётся у клиента.
type Session struct {
	ID        string     `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	TokenHash string     `db:"token_hash" json:"-"`
	DeviceID  string     `db:"device_id" json:"device_id"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	IsExpired bool       `db:"is_expired" json:"is_expired"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	Reason    *string    `db:"reason" json:"reason,omitempty"`
}

// Valid сообщает, можно ли по этой сессии выдать новую пару токенов.
func (s *Session) Valid() bool {
	return !s.IsExpired && s.RevokedAt == nil && time.Now().UTC().Before(s.ExpiresAt)
}
