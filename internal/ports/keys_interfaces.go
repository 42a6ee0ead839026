package ports

import (
	"context"
	"time"

	"trivia-auth-server/internal/model"
)

// KeyRepository — хранилище ключей подписи JWT.
type KeyRepository interface {
	// CreateKey сохраняет новый ключ подписи.
	CreateKey(ctx context.Context, key *model.SigningKey) error

	// GetActiveKey возвращает текущий активный не истёкший ключ.
	GetActiveKey(ctx context.Context) (*model.SigningKey, error)

	// GetValidationKeys возвращает все ключи, пригодные для проверки
	// подписи: активный и недавно ротированные, но ещё не истёкшие.
	GetValidationKeys(ctx context.Context) ([]*model.SigningKey, error)

	// DeactivateActiveKeys помечает активные ключи ротированными.
	DeactivateActiveKeys(ctx context.Context, rotatedAt time.Time) error

	// PruneExpiredKeys удаляет ключи, истёкшие раньше указанного момента.
	PruneExpiredKeys(ctx context.Context, before time.Time) (int64, error)
}

// KeyManager управляет жизненным циклом ключей подписи: выдаёт текущий
// ключ (создавая его при холодном старте), набор проверочных ключей и
// выполняет ротацию.
type KeyManager interface {
	CurrentSigningKey(ctx context.Context) (*model.SigningKey, error)
	VerificationKeys(ctx context.Context) (map[string][]byte, error)
	Rotate(ctx context.Context) (string, error)
	PruneExpired(ctx context.Context, grace time.Duration) (int64, error)
}
