package model

// TokensPair содержит пару access и refresh токенов вместе с CSRF-хэшем.
// CSRFToken — односторонний хэш секрета из cookie; клиент обязан вернуть
// его в заголовке при изменяющих запросах.
type TokensPair struct {
	AccessToken string `json:"accessToken"`

	// Refresh токен (для получения новой пары). Клиенту уходит только
	// через cookie, в тело ответа не попадает.
	RefreshToken string `json:"-"`

	// CSRF-секрет для cookie. В тело ответа не попадает.
	CSRFSecret string `json:"-"`

	CSRFToken string `json:"csrfToken"`

	// Время жизни access-токена в секундах.
	ExpiresIn int64 `json:"expiresIn"`
}
