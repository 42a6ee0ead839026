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

var userColumns = []string{"id", "email", "password_hash", "role", "created_at"}

// 1. Создание пользователя возвращает присвоенный id
func TestUserRepository_CreateUser(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	now := time.Now().UTC()
	user := &model.User{Email: "new@example.com", PasswordHash: "хэш", Role: "player", CreatedAt: now}

	mockDB.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs(user.Email, user.PasswordHash, user.Role, user.CreatedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	created, err := repo.CreateUser(context.Background(), user)

	assert.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
}

// 2. Поиск по email
func TestUserRepository_FindByEmail(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(userColumns).AddRow(int64(42), "player@example.com", "хэш", "player", now)

	mockDB.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("player@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "player@example.com")

	assert.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "player", user.Role)
}

// 3. Неизвестный email — sql.ErrNoRows как есть
func TestUserRepository_FindByEmail_NoRows(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	mockDB.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.FindByEmail(context.Background(), "ghost@example.com")

	assert.ErrorIs(t, err, sql.ErrNoRows)
}

// 4. Поиск по id
func TestUserRepository_FindByID(t *testing.T) {
	database, mockDB := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(userColumns).AddRow(int64(42), "player@example.com", "хэш", "player", now)

	mockDB.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	user, err := repo.FindByID(context.Background(), 42)

	assert.NoError(t, err)
	assert.Equal(t, "player@example.com", user.Email)
}
