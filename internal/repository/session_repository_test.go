package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/repository"
)

var sessionColumns = []string{"id", "user_id", "token_hash", "device_id", "ip_address", "user_agent", "expires_at", "created_at", "is_expired", "revoked_at", "reason"}

// 1. Сохранение сессии
func TestSessionRepository_SaveSession(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewSessionRepository(database)

	now := time.Now().UTC()
	session := &model.Session{
		ID:        "session-1",
		UserID:    42,
		TokenHash: "хэш",
		DeviceID:  "device-1",
		IPAddress: "127.0.0.1",
		UserAgent: "agent",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	mockDB.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions`)).
		WithArgs(session.ID, session.UserID, session.TokenHash, session.DeviceID,
			session.IPAddress, session.UserAgent, session.ExpiresAt, session.CreatedAt, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveSession(context.Background(), session)

	assert.NoError(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

// 2. Поиск сессии по хэшу refresh-токена
func TestSessionRepository_FindByTokenHash(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewSessionRepository(database)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(sessionColumns).
		AddRow("session-1", int64(42), "хэш", "device-1", "127.0.0.1", "agent", now.Add(time.Hour), now, false, nil, nil)

	mockDB.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE token_hash = $1`)).
		WithArgs("хэш").
		WillReturnRows(rows)

	session, err := repo.FindByTokenHash(context.Background(), "хэш")

	assert.NoError(t, err)
	assert.Equal(t, "session-1", session.ID)
	assert.Equal(t, int64(42), session.UserID)
	assert.True(t, session.Valid())
}

// 3. Неизвестный хэш — sql.ErrNoRows как есть
func TestSessionRepository_FindByTokenHash_NoRows(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewSessionRepository(database)

	mockDB.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE token_hash = $1`)).
		WithArgs("чужой-хэш").
		WillReturnRows(sqlmock.NewRows(sessionColumns))

	_, err := repo.FindByTokenHash(context.Background(), "чужой-хэш")

	assert.ErrorIs(t, err, sql.ErrNoRows)
}

// 4. Пометка сессии истёкшей
func TestSessionRepository_MarkSessionExpired(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewSessionRepository(database)

	mockDB.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET is_expired = TRUE`)).
		WithArgs(sqlmock.AnyArg(), model.SessionReasonRotated, "session-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSessionExpired(context.Background(), "session-1", model.SessionReasonRotated)

	assert.NoError(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

// 5. Повторная пометка уже истёкшей сессии — ошибка.
// На этом условии держится одноразовость refresh-токена.
func TestSessionRepository_MarkSessionExpired_AlreadyExpired(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewSessionRepository(database)

	mockDB.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET is_expired = TRUE`)).
		WithArgs(sqlmock.AnyArg(), model.SessionReasonRotated, "session-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkSessionExpired(context.Background(), "session-1", model.SessionReasonRotated)

	assert.Error(t, err)
}

// 6. Массовая пометка сессий пользователя возвращает их число
func TestSessionRepository_MarkAllSessionsExpired(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewSessionRepository(database)

	mockDB.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET is_expired = TRUE`)).
		WithArgs(sqlmock.AnyArg(), model.SessionReasonRevokedAll, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	revoked, err := repo.MarkAllSessionsExpired(context.Background(), 42, model.SessionReasonRevokedAll)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), revoked)
}

// 7. Подсчёт действующих сессий
func TestSessionRepository_CountValidSessions(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewSessionRepository(database)

	mockDB.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM sessions`)).
		WithArgs(int64(42), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountValidSessions(context.Background(), 42)

	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

// 8. Вытеснение самых старых сессий сверх лимита
func TestSessionRepository_ExpireSessionsOverLimit(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewSessionRepository(database)

	// Самые новые сессии остаются: сортировка по created_at DESC,
	// лимит уходит в OFFSET.
	mockDB.ExpectExec(`ORDER BY created_at DESC\s+OFFSET \$4`).
		WithArgs(sqlmock.AnyArg(), model.SessionReasonLimitExceeded, int64(42), 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	evicted, err := repo.ExpireSessionsOverLimit(context.Background(), 42, 10, model.SessionReasonLimitExceeded)

	assert.NoError(t, err)
	assert.Equal(t, int64(1), evicted)
}

// 9. Retention sweep удаляет только истёкшие сессии за горизонтом
func TestSessionRepository_DeleteExpiredBefore(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewSessionRepository(database)

	before := time.Now().UTC().Add(-720 * time.Hour)
	mockDB.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE is_expired = TRUE AND expires_at < $1`)).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 5))

	removed, err := repo.DeleteExpiredBefore(context.Background(), before)

	assert.NoError(t, err)
	assert.Equal(t, int64(5), removed)
}
