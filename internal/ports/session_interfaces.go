package ports

import (
	"context"
	"net/http"
	"time"

	"trivia-auth-server/internal/model"
)

// SessionRepository — хранилище сессий (refresh-токенов).
type SessionRepository interface {
	SaveSession(ctx context.Context, session *model.Session) error

	// FindByTokenHash ищет сессию по sha256-хэшу предъявленного
	// refresh-токена.
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)

	MarkSessionExpired(ctx context.Context, sessionID string, reason string) error
	MarkAllSessionsExpired(ctx context.Context, userID int64, reason string) (int64, error)
	CountValidSessions(ctx context.Context, userID int64) (int, error)

	// ExpireSessionsOverLimit помечает истёкшими самые старые действующие
	// сессии пользователя сверх лимита (скользящее окно последних N устройств).
	ExpireSessionsOverLimit(ctx context.Context, userID int64, limit int, reason string) (int64, error)

	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// SessionManager оркестрирует выпуск, ротацию и отзыв пар токенов.
type SessionManager interface {
	IssuePair(ctx context.Context, userID int64, deviceID, ipAddress, userAgent string) (*model.TokensPair, error)
	Refresh(ctx context.Context, refreshToken, deviceID, ipAddress, userAgent string) (*model.TokensPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAll(ctx context.Context, userID int64) error

	SetAuthCookies(w http.ResponseWriter, pair *model.TokensPair)
	ClearAuthCookies(w http.ResponseWriter)
}
