package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"trivia-auth-server/internal/repository"
)

// 1. Upsert пишет или перезаписывает отметку
func TestInvalidationRepository_Upsert(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewInvalidationRepository(database)

	now := time.Now().UTC()
	mockDB.ExpectExec(regexp.QuoteMeta(`INSERT INTO invalid_tokens`)).
		WithArgs(int64(42), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), 42, now)

	assert.NoError(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

// 2. Get возвращает отметку
func TestInvalidationRepository_Get(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewInvalidationRepository(database)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"user_id", "invalidation_time"}).AddRow(int64(42), now)

	mockDB.ExpectQuery(regexp.QuoteMeta(`FROM invalid_tokens WHERE user_id = $1`)).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	marker, err := repo.Get(context.Background(), 42)

	assert.NoError(t, err)
	assert.Equal(t, int64(42), marker.UserID)
	assert.Equal(t, now, marker.InvalidationTime)
}

// 3. Отсутствие отметки — не ошибка, а nil
func TestInvalidationRepository_Get_None(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewInvalidationRepository(database)

	mockDB.ExpectQuery(regexp.QuoteMeta(`FROM invalid_tokens WHERE user_id = $1`)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "invalidation_time"}))

	marker, err := repo.Get(context.Background(), 99)

	assert.NoError(t, err)
	assert.Nil(t, marker)
}

// 4. Delete снимает отметку
func TestInvalidationRepository_Delete(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewInvalidationRepository(database)

	mockDB.ExpectExec(regexp.QuoteMeta(`DELETE FROM invalid_tokens WHERE user_id = $1`)).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), 42)

	assert.NoError(t, err)
}

// 5. ListAll для прогрева кэша при старте
func TestInvalidationRepository_ListAll(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewInvalidationRepository(database)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"user_id", "invalidation_time"}).
		AddRow(int64(1), now).
		AddRow(int64(2), now.Add(-time.Hour))

	mockDB.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, invalidation_time FROM invalid_tokens`)).
		WillReturnRows(rows)

	markers, err := repo.ListAll(context.Background())

	assert.NoError(t, err)
	assert.Len(t, markers, 2)
}

// 6. PruneBefore удаляет отметки за горизонтом безопасности
func TestInvalidationRepository_PruneBefore(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewInvalidationRepository(database)

	horizon := time.Now().UTC().Add(-30 * time.Minute)
	mockDB.ExpectExec(regexp.QuoteMeta(`DELETE FROM invalid_tokens WHERE invalidation_time < $1`)).
		WithArgs(horizon).
		WillReturnResult(sqlmock.NewResult(0, 2))

	removed, err := repo.PruneBefore(context.Background(), horizon)

	assert.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}
