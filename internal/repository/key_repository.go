package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"trivia-auth-server/config"
	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/util"
)

type KeyRepository struct {
	*config.Database
}

func NewKeyRepository(database *config.Database) *KeyRepository {
	return &KeyRepository{database}
}

// CreateKey сохраняет новый ключ подписи в базе данных.
func (r *KeyRepository) CreateKey(ctx context.Context, key *model.SigningKey) error {
	query := `INSERT INTO jwt_keys (id, secret, algorithm, is_active, created_at, expires_at)
				VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.DB.ExecContext(ctx, query,
		key.ID,
		key.Secret,
		key.Algorithm,
		key.IsActive,
		key.CreatedAt,
		key.ExpiresAt,
	)

	if err != nil {
		return util.LogError("ошибка сохранения ключа подписи", err)
	}

	return nil
}

// GetActiveKey возвращает текущий активный не истёкший ключ.
// sql.ErrNoRows пробрасывается наружу: менеджер ключей по нему решает,
// что пора создать ключ самостоятельно (холодный старт).
func (r *KeyRepository) GetActiveKey(ctx context.Context) (*model.SigningKey, error) {
	query := `SELECT id, secret, algorithm, is_active, created_at, expires_at, rotated_at, last_used_at
				FROM jwt_keys
				WHERE is_active = TRUE AND expires_at > $1
				ORDER BY created_at DESC
				LIMIT 1`

	key := &model.SigningKey{}
	if err := r.DB.GetContext(ctx, key, query, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, util.LogError("ошибка поиска активного ключа", err)
	}

	return key, nil
}

// GetValidationKeys возвращает все ключи, которыми ещё можно проверять
// подпись: активный и ротированные, но не истёкшие.
func (r *KeyRepository) GetValidationKeys(ctx context.Context) ([]*model.SigningKey, error) {
	query := `SELECT id, secret, algorithm, is_active, created_at, expires_at, rotated_at, last_used_at
				FROM jwt_keys
				WHERE expires_at > $1`

	var keys []*model.SigningKey
	if err := r.DB.SelectContext(ctx, &keys, query, time.Now().UTC()); err != nil {
		return nil, util.LogError("ошибка выборки проверочных ключей", err)
	}

	return keys, nil
}

// DeactivateActiveKeys помечает все активные ключи ротированными.
// Ключи не удаляются: до собственного истечения они продолжают
// проверять подписанные ранее токены.
func (r *KeyRepository) DeactivateActiveKeys(ctx context.Context, rotatedAt time.Time) error {
	query := `UPDATE jwt_keys SET is_active = FALSE, rotated_at = $1 WHERE is_active = TRUE`

	if _, err := r.DB.ExecContext(ctx, query, rotatedAt); err != nil {
		return util.LogError("ошибка деактивации ключей", err)
	}

	return nil
}

// PruneExpiredKeys удаляет ключи, истёкшие раньше указанного момента.
func (r *KeyRepository) PruneExpiredKeys(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM jwt_keys WHERE expires_at < $1`

	result, err := r.DB.ExecContext(ctx, query, before)
	if err != nil {
		return 0, util.LogError("ошибка удаления истёкших ключей", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, util.LogError("не удалось получить число удалённых ключей", err)
	}

	return rowsAffected, nil
}
