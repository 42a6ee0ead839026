package model

import "github.com/golang-jwt/jwt/v5"

// WSTicketUsage — маркер назначения в claims WebSocket-тикета.
// Обычные access-токены поля usage не имеют.
const WSTicketUsage = "websocket_auth"

// TokenClaims — полезная нагрузка access-токена и WebSocket-тикета.
// CSRFSecret присутствует у каждого обычного access-токена и никогда —
// у тикета; нарушение этого правила означает подделку.
type TokenClaims struct {
	UserID     int64  `json:"user_id"`
	Email      string `json:"email"`
	Role       string `json:"role,omitempty"`
	CSRFSecret string `json:"csrf_secret,omitempty"`
	Usage      string `json:"usage,omitempty"`
	jwt.RegisteredClaims
}

// IsWSTicket сообщает, является ли токен WebSocket-тикетом.
func (c *TokenClaims) IsWSTicket() bool {
	return c.Usage == WSTicketUsage
}
