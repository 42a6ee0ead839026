package security_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/security"
)

// ===== MOCKS =====

// MockTokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) AccessTokenTTL() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockTokenService) IssueAccessToken(user *model.User, csrfSecret string, key *model.SigningKey) (string, error) {
	args := m.Called(user, csrfSecret, key)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) IssueWSTicket(ctx context.Context, user *model.User) (string, int64, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Get(1).(int64), args.Error(2)
}

func (m *MockTokenService) Verify(ctx context.Context, tokenString string) (*model.TokenClaims, error) {
	args := m.Called(ctx, tokenString)
	if claims, ok := args.Get(0).(*model.TokenClaims); ok {
		return claims, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTokenService) InvalidateUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockTokenService) LiftInvalidation(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// ===== TESTS =====

// 1. Секрет случаен и пригоден для cookie
func TestGenerateCSRFSecret(t *testing.T) {
	first, err := security.GenerateCSRFSecret()
	assert.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := security.GenerateCSRFSecret()
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}

// 2. Хэш детерминирован и не совпадает с секретом
func TestHashCSRFSecret(t *testing.T) {
	hash := security.HashCSRFSecret("секрет")

	assert.Len(t, hash, 64)
	assert.Equal(t, hash, security.HashCSRFSecret("секрет"))
	assert.NotEqual(t, "секрет", hash)
}

// 3. Double-submit: совпадение и все варианты отказа
func TestVerifyCSRF(t *testing.T) {
	secret := "секрет"
	hash := security.HashCSRFSecret(secret)

	assert.True(t, security.VerifyCSRF(secret, hash))
	assert.False(t, security.VerifyCSRF(secret, "чужой-хэш"))
	assert.False(t, security.VerifyCSRF(secret, ""))
	assert.False(t, security.VerifyCSRF("", hash))
	// Сам секрет вместо хэша — отказ: клиент обязан прислать именно хэш.
	assert.False(t, security.VerifyCSRF(secret, secret))
}

// 4. Имя cookie зависит от режима
func TestCSRFCookieName(t *testing.T) {
	assert.Equal(t, "__Host-csrf_secret", security.CSRFCookieName(true))
	assert.Equal(t, "csrf_secret", security.CSRFCookieName(false))
}

func csrfTestHandler() (http.Handler, *bool) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	return security.CSRFMiddleware(false)(next), &reached
}

// 5. GET проходит без CSRF-заголовка
func TestCSRFMiddleware_SkipsSafeMethods(t *testing.T) {
	middleware, reached := csrfTestHandler()

	request := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	recorder := httptest.NewRecorder()

	middleware.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, *reached)
}

// 6. POST без cookie — 403
func TestCSRFMiddleware_NoCookie(t *testing.T) {
	middleware, reached := csrfTestHandler()

	request := httptest.NewRequest(http.MethodPost, "/api/auth/logout-all", nil)
	request.Header.Set(security.CSRFHeader, "что-нибудь")
	recorder := httptest.NewRecorder()

	middleware.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.False(t, *reached)
}

// 7. POST с правильной парой cookie/заголовок проходит
func TestCSRFMiddleware_ValidPair(t *testing.T) {
	middleware, reached := csrfTestHandler()

	secret, err := security.GenerateCSRFSecret()
	assert.NoError(t, err)

	request := httptest.NewRequest(http.MethodPost, "/api/auth/logout-all", nil)
	request.AddCookie(&http.Cookie{Name: security.CSRFCookieName(false), Value: secret})
	request.Header.Set(security.CSRFHeader, security.HashCSRFSecret(secret))
	recorder := httptest.NewRecorder()

	middleware.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, *reached)
}

// 8. POST с чужим заголовком — 403
func TestCSRFMiddleware_HashMismatch(t *testing.T) {
	middleware, reached := csrfTestHandler()

	secret, err := security.GenerateCSRFSecret()
	assert.NoError(t, err)

	request := httptest.NewRequest(http.MethodPost, "/api/auth/logout-all", nil)
	request.AddCookie(&http.Cookie{Name: security.CSRFCookieName(false), Value: secret})
	request.Header.Set(security.CSRFHeader, security.HashCSRFSecret("другой секрет"))
	recorder := httptest.NewRecorder()

	middleware.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.False(t, *reached)
}

// 8а. Необязательная проверка: запрос без CSRF-cookie проходит,
// но при живой cookie double-submit обязателен
func TestOptionalCSRFMiddleware(t *testing.T) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	middleware := security.OptionalCSRFMiddleware(false)(next)

	// Без cookie: cookie с секретом истекает вместе с access-токеном,
	// такой запрос должен пройти.
	request := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	recorder := httptest.NewRecorder()
	middleware.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, reached)

	secret, err := security.GenerateCSRFSecret()
	assert.NoError(t, err)

	// Cookie есть, заголовка нет — межсайтовый POST, отказ.
	reached = false
	request = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	request.AddCookie(&http.Cookie{Name: security.CSRFCookieName(false), Value: secret})
	recorder = httptest.NewRecorder()
	middleware.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.False(t, reached)

	// Cookie и правильный заголовок — проходит.
	request = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	request.AddCookie(&http.Cookie{Name: security.CSRFCookieName(false), Value: secret})
	request.Header.Set(security.CSRFHeader, security.HashCSRFSecret(secret))
	recorder = httptest.NewRecorder()
	middleware.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, reached)
}

// 9. JWTMiddleware: валидный токен из cookie кладёт claims в контекст
func TestJWTMiddleware_CookieToken(t *testing.T) {
	tokenService := new(MockTokenService)
	claims := &model.TokenClaims{UserID: 42, Email: "player@example.com"}
	tokenService.On("Verify", mock.Anything, "cookie-token").Return(claims, nil)

	var got *model.TokenClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = security.GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	request.AddCookie(&http.Cookie{Name: security.AccessTokenCookie, Value: "cookie-token"})
	recorder := httptest.NewRecorder()

	security.JWTMiddleware(tokenService)(next).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, int64(42), got.UserID)
}

// 10. JWTMiddleware: заголовок Authorization как запасной источник
func TestJWTMiddleware_BearerHeader(t *testing.T) {
	tokenService := new(MockTokenService)
	tokenService.On("Verify", mock.Anything, "токен").Return(&model.TokenClaims{UserID: 1}, nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	request.Header.Set("Authorization", "Bearer токен")
	recorder := httptest.NewRecorder()

	security.JWTMiddleware(tokenService)(next).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

// 11. JWTMiddleware: без токена — 401, Verify не вызывается
func TestJWTMiddleware_NoToken(t *testing.T) {
	tokenService := new(MockTokenService)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("обработчик не должен вызываться")
	})

	request := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	recorder := httptest.NewRecorder()

	security.JWTMiddleware(tokenService)(next).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	tokenService.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

// 12. JWTMiddleware: WebSocket-тикет не даёт доступа к API
func TestJWTMiddleware_RejectsWSTicket(t *testing.T) {
	tokenService := new(MockTokenService)
	ticket := &model.TokenClaims{UserID: 42, Usage: model.WSTicketUsage}
	tokenService.On("Verify", mock.Anything, "тикет").Return(ticket, nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("обработчик не должен вызываться")
	})

	request := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	request.AddCookie(&http.Cookie{Name: security.AccessTokenCookie, Value: "тикет"})
	recorder := httptest.NewRecorder()

	security.JWTMiddleware(tokenService)(next).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
