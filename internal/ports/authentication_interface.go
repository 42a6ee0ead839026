package ports

import (
	"context"

	"trivia-auth-server/internal/model"
)

type AuthenticationService interface {
	Login(ctx context.Context, email, password, deviceID, userAgent, ipAddress string) (*model.TokensPair, error)
	Register(ctx context.Context, email, password, deviceID, userAgent, ipAddress string) (*model.TokensPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64) error
}
