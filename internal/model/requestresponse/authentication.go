package requestresponse

// LoginRequest тело запроса аутентификации
// swagger:model
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id,omitempty"`
}

// RegisterRequest тело запроса регистрации
// swagger:model
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id,omitempty"`
}

// TokenResponse тело успешного ответа login/refresh.
// Сырой refresh-токен и CSRF-секрет в тело не попадают никогда:
// они уходят только в cookie.
// swagger:model
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	CSRFToken   string `json:"csrf_token"`
}

// WSTicketResponse короткоживущий тикет для WebSocket-рукопожатия
// swagger:model
type WSTicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int64  `json:"expires_in"`
}

// CurrentUserResponse информация о текущем пользователе
// swagger:model
type CurrentUserResponse struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
}

// RotateKeyResponse результат ротации ключа подписи
// swagger:model
type RotateKeyResponse struct {
	Kid string `json:"kid"`
}

// ErrorResponse стандартный ответ с ошибкой
// swagger:model
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
