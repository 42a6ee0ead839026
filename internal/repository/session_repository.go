package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trivia-auth-server/config"
	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/util"
)

type SessionRepository struct {
	*config.Database
}

func NewSessionRepository(database *config.Database) *SessionRepository {
	return &SessionRepository{database}
}

// SaveSession сохраняет сессию (запись о refresh-токене) в базе данных.
func (r *SessionRepository) SaveSession(ctx context.Context, session *model.Session) error {
	query := `INSERT INTO sessions (id, user_id, token_hash, device_id, ip_address, user_agent, expires_at, created_at, is_expired)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.DB.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.DeviceID,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
		session.CreatedAt,
		session.IsExpired,
	)

	if err != nil {
		return util.LogError("ошибка сохранения сессии", err)
	}

	return nil
}

// FindByTokenHash ищет сессию по хэшу предъявленного refresh-токена.
func (r *SessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	query := `SELECT id, user_id, token_hash, device_id, ip_address, user_agent, expires_at, created_at, is_expired, revoked_at, reason
				FROM sessions WHERE token_hash = $1`

	session := &model.Session{}
	if err := r.DB.GetContext(ctx, session, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, util.LogError("ошибка поиска сессии", err)
	}

	return session, nil
}

// MarkSessionExpired помечает сессию истёкшей с указанием причины.
// Повторная пометка уже истёкшей сессии — ошибка: на этом построена
// одноразовость refresh-токена, гонка двух refresh должна давать
// ровно одного победителя.
func (r *SessionRepository) MarkSessionExpired(ctx context.Context, sessionID string, reason string) error {
	query := `UPDATE sessions SET is_expired = TRUE, revoked_at = $1, reason = $2
				WHERE id = $3 AND is_expired = FALSE`

	result, err := r.DB.ExecContext(ctx, query, time.Now().UTC(), reason, sessionID)
	if err != nil {
		return util.LogError("не удалось пометить сессию истёкшей", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return util.LogError("не удалось проверить, помечена ли сессия", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("сессия %s не найдена или уже истекла", sessionID)
	}

	return nil
}

// MarkAllSessionsExpired помечает истёкшими все действующие сессии пользователя.
func (r *SessionRepository) MarkAllSessionsExpired(ctx context.Context, userID int64, reason string) (int64, error) {
	query := `UPDATE sessions SET is_expired = TRUE, revoked_at = $1, reason = $2
				WHERE user_id = $3 AND is_expired = FALSE`

	result, err := r.DB.ExecContext(ctx, query, time.Now().UTC(), reason, userID)
	if err != nil {
		return 0, util.LogError("не удалось пометить сессии пользователя истёкшими", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, util.LogError("не удалось получить число помеченных сессий", err)
	}

	return rowsAffected, nil
}

// CountValidSessions возвращает число действующих сессий пользователя.
func (r *SessionRepository) CountValidSessions(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM sessions
				WHERE user_id = $1 AND is_expired = FALSE AND revoked_at IS NULL AND expires_at > $2`

	var count int
	if err := r.DB.GetContext(ctx, &count, query, userID, time.Now().UTC()); err != nil {
		return 0, util.LogError("ошибка подсчёта сессий", err)
	}

	return count, nil
}

// ExpireSessionsOverLimit помечает истёкшими самые старые действующие
// сессии пользователя сверх лимита: скользящее окно из N последних
// устройств, а не жёсткий отказ в новой сессии.
func (r *SessionRepository) ExpireSessionsOverLimit(ctx context.Context, userID int64, limit int, reason string) (int64, error) {
	query := `UPDATE sessions SET is_expired = TRUE, revoked_at = $1, reason = $2
				WHERE id IN (
					SELECT id FROM sessions
					WHERE user_id = $3 AND is_expired = FALSE AND revoked_at IS NULL AND expires_at > $1
					ORDER BY created_at DESC
					OFFSET $4
				)`

	result, err := r.DB.ExecContext(ctx, query, time.Now().UTC(), reason, userID, limit)
	if err != nil {
		return 0, util.LogError("не удалось ограничить число сессий", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, util.LogError("не удалось получить число вытесненных сессий", err)
	}

	return rowsAffected, nil
}

// DeleteExpiredBefore физически удаляет давно истёкшие сессии (retention sweep).
func (r *SessionRepository) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE is_expired = TRUE AND expires_at < $1`

	result, err := r.DB.ExecContext(ctx, query, before)
	if err != nil {
		return 0, util.LogError("ошибка удаления старых сессий", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, util.LogError("не удалось получить число удалённых сессий", err)
	}

	return rowsAffected, nil
}
