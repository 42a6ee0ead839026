package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"trivia-auth-server/config"
	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/ports"
	"trivia-auth-server/internal/security"
	"trivia-auth-server/internal/util"
)

var (
	// ErrUserNotFound: личность исчезла между выпуском и поиском.
	ErrUserNotFound = errors.New("пользователь не найден")

	// ErrInvalidOrExpiredRefreshToken: предъявленный refresh-токен
	// неизвестен, ротирован, отозван или просрочен.
	ErrInvalidOrExpiredRefreshToken = errors.New("невалидный или просроченный refresh-токен")
)

const (
	defaultRefreshTokenTTL = 720 * time.Hour
	defaultMaxSessions     = 10

	sessionSweepInterval = 24 * time.Hour
)

// SessionManager оркестрирует выпуск пар токенов, ротацию по refresh,
// отзыв, транспорт cookie и лимит одновременных сессий.
type SessionManager struct {
	sessionRepo  ports.SessionRepository
	userRepo     ports.UserRepository
	tokenService ports.TokenService
	keyManager   ports.KeyManager

	refreshTokenTTL time.Duration
	maxSessions     int

	cookieDomain   string
	cookiePath     string
	cookieSecure   bool
	cookieSameSite http.SameSite
}

func NewSessionManager(
	sessionRepo ports.SessionRepository,
	userRepo ports.UserRepository,
	tokenService ports.TokenService,
	keyManager ports.KeyManager,
	cfg *config.SessionConfig,
	jwtCfg *config.JWTConfig,
) (*SessionManager, error) {
	if sessionRepo == nil || userRepo == nil || tokenService == nil || keyManager == nil {
		return nil, fmt.Errorf("SessionManager: не заданы обязательные зависимости")
	}

	refreshTTL := defaultRefreshTokenTTL
	if jwtCfg.RefreshTokenTTL != "" {
		parsed, err := time.ParseDuration(jwtCfg.RefreshTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("SessionManager: некорректный refresh_token_ttl: %w", err)
		}
		refreshTTL = parsed
	}

	maxSessions := cfg.MaxSessionsPerUser
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}

	cookiePath := cfg.CookiePath
	if cookiePath == "" {
		cookiePath = "/"
	}

	return &SessionManager{
		sessionRepo:     sessionRepo,
		userRepo:        userRepo,
		tokenService:    tokenService,
		keyManager:      keyManager,
		refreshTokenTTL: refreshTTL,
		maxSessions:     maxSessions,
		cookieDomain:    cfg.CookieDomain,
		cookiePath:      cookiePath,
		cookieSecure:    cfg.CookieSecure,
		cookieSameSite:  parseSameSite(cfg.CookieSameSite),
	}, nil
}

func parseSameSite(value string) http.SameSite {
	switch value {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// IssuePair выпускает новую пару access/refresh для пользователя:
// свежий CSRF-секрет, access-токен, связанный с ним, случайный
// refresh-токен (в БД — только хэш) и запись сессии. После сохранения
// применяется лимит одновременных сессий.
func (m *SessionManager) IssuePair(ctx context.Context, userID int64, deviceID, ipAddress, userAgent string) (*model.TokensPair, error) {
	user, err := m.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	key, err := m.keyManager.CurrentSigningKey(ctx)
	if err != nil {
		return nil, err
	}

	csrfSecret, err := security.GenerateCSRFSecret()
	if err != nil {
		return nil, err
	}

	accessToken, err := m.tokenService.IssueAccessToken(user, csrfSecret, key)
	if err != nil {
		return nil, err
	}

	refreshToken, tokenHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		DeviceID:  deviceID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: now.Add(m.refreshTokenTTL),
		CreatedAt: now,
	}

	if err := m.sessionRepo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("ошибка сохранения сессии: %w", err)
	}

	if evicted, err := m.sessionRepo.ExpireSessionsOverLimit(ctx, user.ID, m.maxSessions, model.SessionReasonLimitExceeded); err != nil {
		log.Printf("не удалось применить лимит сессий для пользователя %d: %v", user.ID, err)
	} else if evicted > 0 {
		remaining, countErr := m.sessionRepo.CountValidSessions(ctx, user.ID)
		if countErr != nil {
			log.Printf("пользователь %d превысил лимит сессий, вытеснено %d", user.ID, evicted)
		} else {
			log.Printf("пользователь %d превысил лимит сессий, вытеснено %d, осталось %d", user.ID, evicted, remaining)
		}
	}

	return &model.TokensPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFSecret:   csrfSecret,
		CSRFToken:    security.HashCSRFSecret(csrfSecret),
		ExpiresIn:    int64(m.tokenService.AccessTokenTTL().Seconds()),
	}, nil
}

// Refresh обменивает предъявленный refresh-токен на новую пару.
// Токен одноразовый: строка помечается ротированной до выпуска новой
// пары, поэтому из двух одновременных refresh по одному токену
// выигрывает ровно один.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken, deviceID, ipAddress, userAgent string) (*model.TokensPair, error) {
	session, err := m.sessionRepo.FindByTokenHash(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidOrExpiredRefreshToken
		}
		return nil, fmt.Errorf("ошибка поиска сессии: %w", err)
	}

	if !session.Valid() {
		log.Printf("попытка refresh по недействительной сессии %s", session.ID)
		return nil, ErrInvalidOrExpiredRefreshToken
	}

	if err := m.sessionRepo.MarkSessionExpired(ctx, session.ID, model.SessionReasonRotated); err != nil {
		// Гонка: конкурирующий refresh уже ротировал эту сессию.
		log.Printf("не удалось ротировать сессию %s: %v", session.ID, err)
		return nil, ErrInvalidOrExpiredRefreshToken
	}

	return m.IssuePair(ctx, session.UserID, deviceID, ipAddress, userAgent)
}

// Revoke отзывает одну сессию по предъявленному refresh-токену.
func (m *SessionManager) Revoke(ctx context.Context, refreshToken string) error {
	session, err := m.sessionRepo.FindByTokenHash(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidOrExpiredRefreshToken
		}
		return fmt.Errorf("ошибка поиска сессии: %w", err)
	}

	if err := m.sessionRepo.MarkSessionExpired(ctx, session.ID, model.SessionReasonRevoked); err != nil {
		return fmt.Errorf("не удалось отозвать сессию: %w", err)
	}

	return nil
}

// RevokeAll отзывает все сессии пользователя и ставит отметку «выйти
// везде», чтобы уже выданные access-токены тоже перестали действовать —
// на случай, когда клиент не может предъявить refresh-токен (украденное
// устройство, перехват аккаунта).
func (m *SessionManager) RevokeAll(ctx context.Context, userID int64) error {
	revoked, err := m.sessionRepo.MarkAllSessionsExpired(ctx, userID, model.SessionReasonRevokedAll)
	if err != nil {
		return fmt.Errorf("не удалось отозвать сессии пользователя: %w", err)
	}
	log.Printf("отозвано %d сессий пользователя %d", revoked, userID)

	if err := m.tokenService.InvalidateUser(ctx, userID); err != nil {
		return fmt.Errorf("не удалось отозвать access-токены: %w", err)
	}

	return nil
}

// PruneSessions физически удаляет давно истёкшие записи сессий.
func (m *SessionManager) PruneSessions(ctx context.Context) (int64, error) {
	return m.sessionRepo.DeleteExpiredBefore(ctx, time.Now().UTC().Add(-m.refreshTokenTTL))
}

// StartCleanup запускает фоновый retention sweep записей сессий.
func (m *SessionManager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sessionSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("очистка сессий остановлена")
				return
			case <-ticker.C:
				removed, err := m.PruneSessions(ctx)
				if err != nil {
					log.Printf("ошибка очистки сессий: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("удалено %d старых сессий", removed)
				}
			}
		}
	}()
}

// SetAuthCookies раскладывает пару по трём cookie: access-токен,
// refresh-токен и CSRF-секрет. Все HttpOnly; cookie с CSRF-секретом
// получает имя с префиксом __Host- только при Secure.
func (m *SessionManager) SetAuthCookies(w http.ResponseWriter, pair *model.TokensPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     security.AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     m.cookiePath,
		Domain:   m.cookieDomain,
		MaxAge:   int(pair.ExpiresIn),
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: m.cookieSameSite,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     security.RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     m.cookiePath,
		Domain:   m.cookieDomain,
		MaxAge:   int(m.refreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: m.cookieSameSite,
	})

	// __Host- требует Path=/ и запрещает Domain.
	csrfCookie := &http.Cookie{
		Name:     security.CSRFCookieName(m.cookieSecure),
		Value:    pair.CSRFSecret,
		Path:     "/",
		MaxAge:   int(pair.ExpiresIn),
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: m.cookieSameSite,
	}
	if !m.cookieSecure {
		csrfCookie.Domain = m.cookieDomain
	}
	http.SetCookie(w, csrfCookie)
}

// ClearAuthCookies удаляет авторизационные cookie при выходе.
func (m *SessionManager) ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{security.AccessTokenCookie, security.RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     m.cookiePath,
			Domain:   m.cookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.cookieSecure,
			SameSite: m.cookieSameSite,
		})
	}

	http.SetCookie(w, &http.Cookie{
		Name:     security.CSRFCookieName(m.cookieSecure),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: m.cookieSameSite,
	})
}

// generateRefreshToken возвращает случайный refresh-токен и его
// sha256-хэш. Токен отдаётся клиенту, в БД сохраняется только хэш.
func generateRefreshToken() (string, string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", util.LogError("ошибка генерации refresh-токена", err)
	}

	token := base64.RawURLEncoding.EncodeToString(tokenBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
