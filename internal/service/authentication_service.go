package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/ports"
	"trivia-auth-server/internal/security"
)

var (
	// ErrInvalidCredentials: пароль не подошёл. Отдельный sentinel, чтобы
	// обработчик отличал неверный пароль от отказа хранилища: первый —
	// 401, второй — 500.
	ErrInvalidCredentials = errors.New("неверный логин или пароль")

	ErrEmailAlreadyTaken = errors.New("пользователь с таким email уже зарегистрирован")
	ErrPasswordTooShort  = errors.New("пароль должен быть не меньше 8 символов")
)

type AuthenticationService struct {
	userRepository ports.UserRepository
	sessionManager ports.SessionManager
}

func NewAuthenticationService(
	userRepository ports.UserRepository,
	sessionManager ports.SessionManager,
) *AuthenticationService {
	return &AuthenticationService{
		userRepository: userRepository,
		sessionManager: sessionManager,
	}
}

// Login проверяет учётные данные и выпускает пару токенов для нового
// устройства пользователя.
func (s *AuthenticationService) Login(ctx context.Context, email, password, deviceID, userAgent, ipAddress string) (*model.TokensPair, error) {
	user, err := s.userRepository.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	if !security.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.sessionManager.IssuePair(ctx, user.ID, deviceID, ipAddress, userAgent)
}

// Register создаёт пользователя и сразу выпускает ему пару токенов.
func (s *AuthenticationService) Register(ctx context.Context, email, password, deviceID, userAgent, ipAddress string) (*model.TokensPair, error) {
	if _, err := s.userRepository.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ошибка проверки email: %w", err)
	}

	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepository.CreateUser(ctx, &model.User{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         "player",
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return s.sessionManager.IssuePair(ctx, user.ID, deviceID, ipAddress, userAgent)
}

// Logout отзывает сессию, которой принадлежит предъявленный refresh-токен.
func (s *AuthenticationService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessionManager.Revoke(ctx, refreshToken)
}

// LogoutAll отзывает все сессии пользователя на всех устройствах вместе
// с уже выданными access-токенами.
func (s *AuthenticationService) LogoutAll(ctx context.Context, userID int64) error {
	return s.sessionManager.RevokeAll(ctx, userID)
}
