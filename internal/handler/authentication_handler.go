package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/model/requestresponse"
	"trivia-auth-server/internal/ports"
	"trivia-auth-server/internal/security"
	"trivia-auth-server/internal/service"
	"trivia-auth-server/internal/util"
)

type AuthenticationHandler struct {
	authService    ports.AuthenticationService
	sessionManager ports.SessionManager
	tokenService   ports.TokenService
	keyManager     ports.KeyManager
}

func NewAuthenticationHandler(
	authService ports.AuthenticationService,
	sessionManager ports.SessionManager,
	tokenService ports.TokenService,
	keyManager ports.KeyManager,
) *AuthenticationHandler {
	return &AuthenticationHandler{
		authService:    authService,
		sessionManager: sessionManager,
		tokenService:   tokenService,
		keyManager:     keyManager,
	}
}

// Login godoc
// @Summary Аутентификация пользователя
// @Description Вход по email и паролю, пара токенов уходит в cookie
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.LoginRequest true "Тело запроса"
// @Success 200 {object} requestresponse.TokenResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req requestresponse.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.HandleError(w, "некорректный JSON", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		util.HandleError(w, "email и password обязательны", http.StatusBadRequest)
		return
	}

	pair, err := h.authService.Login(ctx, req.Email, req.Password, req.DeviceID, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		log.Println(err)
		switch {
		case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrInvalidCredentials):
			util.HandleError(w, "неверный логин или пароль", http.StatusUnauthorized)
		default:
			// Всё остальное — отказ хранилища или ключей, не клиента.
			util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	h.writeTokenResponse(w, pair)
}

// Register godoc
// @Summary Регистрация пользователя
// @Description Создаёт пользователя и сразу выдаёт пару токенов
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.RegisterRequest true "Тело запроса"
// @Success 200 {object} requestresponse.TokenResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthenticationHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req requestresponse.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.HandleError(w, "некорректный JSON", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		util.HandleError(w, "email и password обязательны", http.StatusBadRequest)
		return
	}

	pair, err := h.authService.Register(ctx, req.Email, req.Password, req.DeviceID, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		log.Println(err)
		switch {
		case errors.Is(err, service.ErrEmailAlreadyTaken), errors.Is(err, service.ErrPasswordTooShort):
			util.HandleError(w, err.Error(), http.StatusBadRequest)
		default:
			util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	h.writeTokenResponse(w, pair)
}

// RefreshToken godoc
// @Summary Обновление пары токенов
// @Description Обменивает refresh-токен из cookie на новую пару. Токен одноразовый.
// @Tags Authentication
// @Produce json
// @Success 200 {object} requestresponse.TokenResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Router /api/auth/refresh [post]
func (h *AuthenticationHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(security.RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		util.HandleError(w, "отсутствует refresh-токен", http.StatusUnauthorized)
		return
	}

	var deviceID string
	var req requestresponse.LoginRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr == nil {
		deviceID = req.DeviceID
	}

	pair, err := h.sessionManager.Refresh(ctx, cookie.Value, deviceID, r.RemoteAddr, r.UserAgent())
	if err != nil {
		log.Println(err)
		switch {
		case errors.Is(err, service.ErrInvalidOrExpiredRefreshToken):
			h.sessionManager.ClearAuthCookies(w)
			util.HandleError(w, "невалидный или просроченный refresh-токен", http.StatusUnauthorized)
		case errors.Is(err, service.ErrUserNotFound):
			h.sessionManager.ClearAuthCookies(w)
			util.HandleError(w, "пользователь не найден", http.StatusUnauthorized)
		default:
			util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	h.writeTokenResponse(w, pair)
}

// Logout godoc
// @Summary Выход
// @Description Отзывает сессию по refresh-токену из cookie и чистит cookie
// @Tags Authentication
// @Produce json
// @Success 204
// @Failure 401 {object} requestresponse.ErrorResponse
// @Router /api/auth/logout [post]
func (h *AuthenticationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(security.RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		util.HandleError(w, "отсутствует refresh-токен", http.StatusUnauthorized)
		return
	}

	if err := h.authService.Logout(ctx, cookie.Value); err != nil {
		log.Println(err)
		// Cookie чистим в любом случае: клиент хочет выйти.
	}

	h.sessionManager.ClearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll godoc
// @Summary Выход на всех устройствах
// @Description Отзывает все сессии пользователя и уже выданные access-токены
// @Tags Authentication
// @Produce json
// @Success 204
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Router /api/auth/logout-all [post]
func (h *AuthenticationHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "не авторизован", http.StatusUnauthorized)
		return
	}

	if err := h.authService.LogoutAll(ctx, claims.UserID); err != nil {
		log.Println(err)
		util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	h.sessionManager.ClearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// GetCurrentUser godoc
// @Summary Текущий пользователь
// @Description Возвращает идентичность из проверенного access-токена
// @Tags Authentication
// @Produce json
// @Success 200 {object} requestresponse.CurrentUserResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthenticationHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := security.GetClaimsFromContext(r.Context())
	if err != nil {
		util.HandleError(w, "не авторизован", http.StatusUnauthorized)
		return
	}

	resp := requestresponse.CurrentUserResponse{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// GetWSTicket godoc
// @Summary Тикет для WebSocket
// @Description Выдаёт короткоживущий тикет для WebSocket-рукопожатия
// @Tags Authentication
// @Produce json
// @Success 200 {object} requestresponse.WSTicketResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Router /api/auth/ws-ticket [get]
func (h *AuthenticationHandler) GetWSTicket(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "не авторизован", http.StatusUnauthorized)
		return
	}

	user := &model.User{ID: claims.UserID, Email: claims.Email, Role: claims.Role}
	ticket, expiresIn, err := h.tokenService.IssueWSTicket(ctx, user)
	if err != nil {
		log.Println(err)
		util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	resp := requestresponse.WSTicketResponse{Ticket: ticket, ExpiresIn: expiresIn}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// RotateKey godoc
// @Summary Ротация ключа подписи
// @Description Деактивирует текущий ключ и создаёт новый. Только для администратора.
// @Tags Administration
// @Produce json
// @Success 200 {object} requestresponse.RotateKeyResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Router /api/auth/keys/rotate [post]
func (h *AuthenticationHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "не авторизован", http.StatusUnauthorized)
		return
	}

	if claims.Role != "admin" {
		util.HandleError(w, "доступ запрещён", http.StatusForbidden)
		return
	}

	kid, err := h.keyManager.Rotate(ctx)
	if err != nil {
		log.Println(err)
		util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	resp := requestresponse.RotateKeyResponse{Kid: kid}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// writeTokenResponse раскладывает пару по cookie и отдаёт тело без
// сырого refresh-токена и CSRF-секрета.
func (h *AuthenticationHandler) writeTokenResponse(w http.ResponseWriter, pair *model.TokensPair) {
	h.sessionManager.SetAuthCookies(w, pair)

	resp := requestresponse.TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   pair.ExpiresIn,
		CSRFToken:   pair.CSRFToken,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
