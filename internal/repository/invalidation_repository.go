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

type InvalidationRepository struct {
	*config.Database
}

func NewInvalidationRepository(database *config.Database) *InvalidationRepository {
	return &InvalidationRepository{database}
}

// Upsert создаёт или перезаписывает отметку «выйти везде» для пользователя.
func (r *InvalidationRepository) Upsert(ctx context.Context, userID int64, invalidationTime time.Time) error {
	query := `INSERT INTO invalid_tokens (user_id, invalidation_time)
				VALUES ($1, $2)
				ON CONFLICT (user_id) DO UPDATE SET invalidation_time = EXCLUDED.invalidation_time`

	if _, err := r.DB.ExecContext(ctx, query, userID, invalidationTime); err != nil {
		return util.LogError("ошибка сохранения отметки отзыва", err)
	}

	return nil
}

// Get возвращает отметку отзыва пользователя либо nil, если её нет.
func (r *InvalidationRepository) Get(ctx context.Context, userID int64) (*model.InvalidationMarker, error) {
	query := `SELECT user_id, invalidation_time FROM invalid_tokens WHERE user_id = $1`

	marker := &model.InvalidationMarker{}
	if err := r.DB.GetContext(ctx, marker, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, util.LogError("ошибка поиска отметки отзыва", err)
	}

	return marker, nil
}

// Delete снимает отметку отзыва (административная операция).
func (r *InvalidationRepository) Delete(ctx context.Context, userID int64) error {
	query := `DELETE FROM invalid_tokens WHERE user_id = $1`

	if _, err := r.DB.ExecContext(ctx, query, userID); err != nil {
		return util.LogError("ошибка удаления отметки отзыва", err)
	}

	return nil
}

// ListAll возвращает все отметки отзыва; используется для прогрева
// локального кэша при старте процесса.
func (r *InvalidationRepository) ListAll(ctx context.Context) ([]*model.InvalidationMarker, error) {
	query := `SELECT user_id, invalidation_time FROM invalid_tokens`

	var markers []*model.InvalidationMarker
	if err := r.DB.SelectContext(ctx, &markers, query); err != nil {
		return nil, util.LogError("ошибка выборки отметок отзыва", err)
	}

	return markers, nil
}

// PruneBefore удаляет отметки старше горизонта безопасности: токены,
// которые они отзывали, к этому моменту истекли сами.
func (r *InvalidationRepository) PruneBefore(ctx context.Context, horizon time.Time) (int64, error) {
	query := `DELETE FROM invalid_tokens WHERE invalidation_time < $1`

	result, err := r.DB.ExecContext(ctx, query, horizon)
	if err != nil {
		return 0, util.LogError("ошибка очистки отметок отзыва", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, util.LogError("не удалось получить число удалённых отметок", err)
	}

	return rowsAffected, nil
}
