package ports

import (
	"context"
	"time"

	"trivia-auth-server/internal/model"
)

// InvalidationRepository — хранилище отметок «выйти везде».
type InvalidationRepository interface {
	Upsert(ctx context.Context, userID int64, invalidationTime time.Time) error
	Get(ctx context.Context, userID int64) (*model.InvalidationMarker, error)
	Delete(ctx context.Context, userID int64) error
	ListAll(ctx context.Context) ([]*model.InvalidationMarker, error)
	PruneBefore(ctx context.Context, horizon time.Time) (int64, error)
}

// TokenService выпускает и проверяет bearer-токены и WebSocket-тикеты.
type TokenService interface {
	AccessTokenTTL() time.Duration
	IssueAccessToken(user *model.User, csrfSecret string, key *model.SigningKey) (string, error)
	IssueWSTicket(ctx context.Context, user *model.User) (string, int64, error)
	Verify(ctx context.Context, tokenStr string) (*model.TokenClaims, error)
	InvalidateUser(ctx context.Context, userID int64) error
	LiftInvalidation(ctx context.Context, userID int64) error
}
