package repository

import (
	"context"
	"database/sql"
	"errors"

	"trivia-auth-server/config"
	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/util"
)

type UserRepository struct {
	*config.Database
}

func NewUserRepository(database *config.Database) *UserRepository {
	return &UserRepository{database}
}

// CreateUser сохраняет нового пользователя и возвращает его с присвоенным id.
func (r *UserRepository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	query := `INSERT INTO users (email, password_hash, role, created_at)
				VALUES ($1, $2, $3, $4)
				RETURNING id`

	err := r.DB.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
	).Scan(&user.ID)

	if err != nil {
		return nil, util.LogError("ошибка создания пользователя", err)
	}

	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1`

	user := &model.User{}
	if err := r.DB.GetContext(ctx, user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, util.LogError("ошибка поиска пользователя по email", err)
	}

	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT id, email, password_hash, role, created_at FROM users WHERE id = $1`

	user := &model.User{}
	if err := r.DB.GetContext(ctx, user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, util.LogError("ошибка поиска пользователя", err)
	}

	return user, nil
}
