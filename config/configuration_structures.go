package config

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig задаёт параметры выпуска и проверки токенов.
// Время жизни ключа подписи (KeyLifetime) намеренно на порядки больше
// времени жизни access-токена: ротация ключей — редкое административное
// действие, а не событие на каждый запрос.
type JWTConfig struct {
	Issuer              string `yaml:"issuer"`
	Audience            string `yaml:"audience"`
	AccessTokenTTL      string `yaml:"access_token_ttl"`
	RefreshTokenTTL     string `yaml:"refresh_token_ttl"`
	WSTicketTTL         string `yaml:"ws_ticket_ttl"`
	KeyLifetime         string `yaml:"key_lifetime"`
	CleanupInterval     string `yaml:"cleanup_interval"`
	InvalidationHorizon string `yaml:"invalidation_horizon"`
}

// SessionConfig описывает лимит одновременных сессий и транспорт cookie.
type SessionConfig struct {
	MaxSessionsPerUser int    `yaml:"max_sessions_per_user"`
	CookieDomain       string `yaml:"cookie_domain"`
	CookiePath         string `yaml:"cookie_path"`
	CookieSecure       bool   `yaml:"cookie_secure"`
	CookieSameSite     string `yaml:"cookie_same_site"`
}
