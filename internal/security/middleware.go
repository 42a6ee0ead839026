package security

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/ports"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// JWTMiddleware проверяет bearer-токен из cookie или заголовка
// Authorization и кладёт claims в контекст запроса. WebSocket-тикеты
// доступа к API не дают: у них единственное назначение.
func JWTMiddleware(tokenService ports.TokenService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			token := extractToken(request)
			if token == "" {
				http.Error(writer, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := tokenService.Verify(request.Context(), token)
			if err != nil {
				log.Printf("невалидный токен: %v", err)
				http.Error(writer, "невалидный токен", http.StatusUnauthorized)
				return
			}

			if claims.IsWSTicket() {
				log.Printf("попытка доступа к API по WebSocket-тикету, пользователь %d", claims.UserID)
				http.Error(writer, "unauthorized", http.StatusUnauthorized)
				return
			}

			req := request.WithContext(context.WithValue(request.Context(), UserContextKey, claims))
			next.ServeHTTP(writer, req)
		})
	}
}

func extractToken(request *http.Request) string {
	if cookie, err := request.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authorizationHeader := request.Header.Get("Authorization")
	if strings.HasPrefix(authorizationHeader, "Bearer ") {
		return strings.TrimPrefix(authorizationHeader, "Bearer ")
	}

	return ""
}

// CSRFMiddleware реализует double-submit проверку для изменяющих
// запросов: хэш секрета из cookie обязан совпасть со значением заголовка.
// Проверка не зависит от валидности bearer-токена.
func CSRFMiddleware(secure bool) func(next http.Handler) http.Handler {
	return csrfMiddleware(secure, true)
}

// OptionalCSRFMiddleware — та же double-submit проверка, но запрос без
// CSRF-cookie пропускается. Для refresh и logout: cookie с секретом
// истекает вместе с access-токеном, и легитимный клиент может прийти
// уже без неё. Если cookie есть, проверка обязательна — чужой сайт не
// может форсировать выход или ротацию живой сессии.
func OptionalCSRFMiddleware(secure bool) func(next http.Handler) http.Handler {
	return csrfMiddleware(secure, false)
}

func csrfMiddleware(secure bool, requireCookie bool) func(next http.Handler) http.Handler {
	cookieName := CSRFCookieName(secure)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			switch request.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(writer, request)
				return
			}

			cookie, err := request.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				if !requireCookie {
					next.ServeHTTP(writer, request)
					return
				}
				http.Error(writer, "отсутствует CSRF cookie", http.StatusForbidden)
				return
			}

			presented := request.Header.Get(CSRFHeader)
			if !VerifyCSRF(cookie.Value, presented) {
				log.Printf("CSRF-проверка не пройдена: %s %s", request.Method, request.URL.Path)
				http.Error(writer, "CSRF-проверка не пройдена", http.StatusForbidden)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

func GetClaimsFromContext(ctx context.Context) (*model.TokenClaims, error) {
	claims, ok := ctx.Value(UserContextKey).(*model.TokenClaims)
	if !ok || claims == nil {
		return nil, fmt.Errorf("пользователь не авторизован")
	}
	return claims, nil
}
