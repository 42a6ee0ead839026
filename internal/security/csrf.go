package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"trivia-auth-server/internal/util"
)

// CSRFHeader — заголовок, в котором клиент возвращает csrf_token
// (хэш секрета из cookie) при изменяющих запросах.
const CSRFHeader = "X-CSRF-Token"

const (
	// Имена cookie являются частью контракта с клиентом.
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	// Префикс __Host- требует Secure и привязывает cookie к origin
	// на уровне браузера, поэтому в dev-окружении без TLS используется
	// обычное имя.
	csrfCookieSecure = "__Host-csrf_secret"
	csrfCookiePlain  = "csrf_secret"
)

func CSRFCookieName(secure bool) string {
	if secure {
		return csrfCookieSecure
	}
	return csrfCookiePlain
}

// GenerateCSRFSecret создаёт случайный CSRF-секрет для cookie.
func GenerateCSRFSecret() (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", util.LogError("ошибка генерации CSRF-секрета", err)
	}
	return base64.RawURLEncoding.EncodeToString(secret), nil
}

// HashCSRFSecret возвращает односторонний хэш секрета. Именно хэш, а не
// секрет, уходит клиенту в теле ответа и внутри access-токена.
func HashCSRFSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifyCSRF сравнивает хэш секрета из cookie со значением заголовка
// (double-submit). Сравнение за константное время.
func VerifyCSRF(secret, presentedHash string) bool {
	if secret == "" || presentedHash == "" {
		return false
	}
	expected := HashCSRFSecret(secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presentedHash)) == 1
}
