package security

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trivia-auth-server/config"
	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/ports"
	"trivia-auth-server/internal/util"
)

var (
	// ErrEmptyCSRFSecret: каждый обычный access-токен обязан быть связан
	// с CSRF-секретом, выпуск без него — ошибка архитектуры.
	ErrEmptyCSRFSecret = errors.New("пустой CSRF-секрет")

	// ErrUnsupportedAlgorithm возвращается при попытке подписать токен
	// ключом с неподдерживаемым алгоритмом.
	ErrUnsupportedAlgorithm = errors.New("неподдерживаемый алгоритм подписи")

	ErrNoKeyID      = errors.New("токен без идентификатора ключа")
	ErrUnknownKeyID = errors.New("неизвестный идентификатор ключа")

	// ErrTokenInvalidated: токен формально валиден, но выдан не позже
	// отметки «выйти везде» своего пользователя.
	ErrTokenInvalidated = errors.New("токен отозван")

	// ErrMalformedTicket: WebSocket-тикет несёт CSRF-секрет, чего у
	// настоящих тикетов не бывает.
	ErrMalformedTicket = errors.New("некорректный WebSocket-тикет")
)

const (
	defaultAccessTokenTTL = 15 * time.Minute
	defaultWSTicketTTL    = 60 * time.Second
)

// TokenService выпускает и проверяет bearer-токены и WebSocket-тикеты,
// ведёт локальный кэш отзыва и рассылает события отзыва другим
// экземплярам через шину.
type TokenService struct {
	keyManager       ports.KeyManager
	invalidationRepo ports.InvalidationRepository
	cache            ports.RevocationCache
	bus              ports.EventBus

	issuer          string
	audience        string
	accessTokenTTL  time.Duration
	wsTicketTTL     time.Duration
	cleanupInterval time.Duration
	horizon         time.Duration
}

func NewTokenService(
	keyManager ports.KeyManager,
	invalidationRepo ports.InvalidationRepository,
	cache ports.RevocationCache,
	bus ports.EventBus,
	cfg *config.JWTConfig,
) (*TokenService, error) {
	if keyManager == nil || invalidationRepo == nil || cache == nil {
		return nil, fmt.Errorf("TokenService: не заданы обязательные зависимости")
	}

	accessTTL, err := parseDurationOr(cfg.AccessTokenTTL, defaultAccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("TokenService: некорректный access_token_ttl: %w", err)
	}
	wsTTL, err := parseDurationOr(cfg.WSTicketTTL, defaultWSTicketTTL)
	if err != nil {
		return nil, fmt.Errorf("TokenService: некорректный ws_ticket_ttl: %w", err)
	}
	cleanupInterval, err := parseDurationOr(cfg.CleanupInterval, accessTTL)
	if err != nil {
		return nil, fmt.Errorf("TokenService: некорректный cleanup_interval: %w", err)
	}
	// Горизонт безопасности: отметка отзыва держится минимум вдвое
	// дольше жизни access-токена, после чего отзывать уже нечего.
	horizon, err := parseDurationOr(cfg.InvalidationHorizon, 2*accessTTL)
	if err != nil {
		return nil, fmt.Errorf("TokenService: некорректный invalidation_horizon: %w", err)
	}

	return &TokenService{
		keyManager:       keyManager,
		invalidationRepo: invalidationRepo,
		cache:            cache,
		bus:              bus,
		issuer:           cfg.Issuer,
		audience:         cfg.Audience,
		accessTokenTTL:   accessTTL,
		wsTicketTTL:      wsTTL,
		cleanupInterval:  cleanupInterval,
		horizon:          horizon,
	}, nil
}

func parseDurationOr(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

func (s *TokenService) audienceClaim() jwt.ClaimStrings {
	if s.audience == "" {
		return nil
	}
	return jwt.ClaimStrings{s.audience}
}

// AccessTokenTTL возвращает время жизни access-токена.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.accessTokenTTL
}

// IssueAccessToken подписывает access-токен для пользователя, связывая
// его с CSRF-секретом. Идентификатор ключа уходит в заголовок токена,
// чтобы проверка нашла нужный секрет без перебора.
func (s *TokenService) IssueAccessToken(user *model.User, csrfSecret string, key *model.SigningKey) (string, error) {
	if csrfSecret == "" {
		return "", ErrEmptyCSRFSecret
	}
	if key.Algorithm != SigningAlgorithm {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, key.Algorithm)
	}
	if !key.CanSign() {
		return "", fmt.Errorf("%w: ключ %s не пригоден для подписи", ErrKeyUnavailable, key.ID)
	}

	now := time.Now().UTC()
	claims := model.TokenClaims{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		CSRFSecret: csrfSecret,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			Audience:  s.audienceClaim(),
		},
	}

	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	jwtToken.Header["kid"] = key.ID

	signed, err := jwtToken.SignedString(key.Secret)
	if err != nil {
		return "", util.LogError("ошибка подписи токена", err)
	}

	return signed, nil
}

// IssueWSTicket выпускает короткоживущий тикет для WebSocket-рукопожатия:
// маркер usage и никакого CSRF-секрета. Возвращает тикет и его время
// жизни в секундах.
func (s *TokenService) IssueWSTicket(ctx context.Context, user *model.User) (string, int64, error) {
	key, err := s.keyManager.CurrentSigningKey(ctx)
	if err != nil {
		return "", 0, err
	}

	now := time.Now().UTC()
	claims := model.TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Usage:  model.WSTicketUsage,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.wsTicketTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			Audience:  s.audienceClaim(),
		},
	}

	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	jwtToken.Header["kid"] = key.ID

	signed, err := jwtToken.SignedString(key.Secret)
	if err != nil {
		return "", 0, util.LogError("ошибка подписи тикета", err)
	}

	return signed, int64(s.wsTicketTTL.Seconds()), nil
}

// Verify проверяет подпись и сроки токена, находя ключ по kid из
// заголовка. Для обычных токенов дополнительно проверяется отметка
// отзыва; для тикетов — отсутствие CSRF-секрета.
func (s *TokenService) Verify(ctx context.Context, tokenStr string) (*model.TokenClaims, error) {
	keys, err := s.keyManager.VerificationKeys(ctx)
	if err != nil {
		return nil, err
	}

	claims := &model.TokenClaims{}
	jwtToken, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, ErrNoKeyID
		}
		secret, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKeyID, kid)
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{SigningAlgorithm}))

	if err != nil || !jwtToken.Valid {
		return nil, util.LogError("невалидный токен", err)
	}

	if claims.IsWSTicket() {
		// Тикет живёт только до рукопожатия, проверка отзыва для него
		// пропускается. Но настоящий тикет никогда не несёт CSRF-секрет.
		if claims.CSRFSecret != "" {
			return nil, ErrMalformedTicket
		}
		return claims, nil
	}

	if invalidationTime, ok := s.cache.Get(claims.UserID); ok {
		if claims.IssuedAt != nil && !claims.IssuedAt.Time.After(invalidationTime) {
			return nil, ErrTokenInvalidated
		}
	}

	return claims, nil
}

// InvalidateUser ставит пользователю отметку «выйти везде»: все его
// токены, выданные до этого момента, перестают проходить проверку.
// Локальный кэш обновляется до возврата, поэтому собственный процесс
// видит отзыв мгновенно; остальные экземпляры — после доставки события.
func (s *TokenService) InvalidateUser(ctx context.Context, userID int64) error {
	now := time.Now().UTC()

	// Кэш обновляется даже при отказе БД: локальный процесс обязан
	// остаться корректным.
	s.cache.Set(userID, now)

	if err := s.invalidationRepo.Upsert(ctx, userID, now); err != nil {
		return fmt.Errorf("не удалось сохранить отметку отзыва: %w", err)
	}

	if s.bus != nil {
		event := model.InvalidationEvent{UserID: userID, InvalidationTime: now.Unix()}
		if err := s.bus.PublishInvalidation(ctx, event); err != nil {
			// Best-effort: источник истины — БД, остальные экземпляры
			// догонят через прогрев или очередное событие.
			log.Printf("не удалось опубликовать событие отзыва для пользователя %d: %v", userID, err)
		}
	}

	return nil
}

// LiftInvalidation снимает отметку отзыва (административная операция).
func (s *TokenService) LiftInvalidation(ctx context.Context, userID int64) error {
	s.cache.Delete(userID)

	if err := s.invalidationRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("не удалось снять отметку отзыва: %w", err)
	}

	return nil
}

// WarmupCache загружает отметки отзыва из БД в локальный кэш при старте.
func (s *TokenService) WarmupCache(ctx context.Context) error {
	markers, err := s.invalidationRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("не удалось прогреть кэш отзыва: %w", err)
	}

	for _, marker := range markers {
		s.cache.Set(marker.UserID, marker.InvalidationTime)
	}

	log.Printf("кэш отзыва прогрет: %d отметок", len(markers))
	return nil
}

// StartCleanup запускает фоновую очистку отметок отзыва старше горизонта
// безопасности — в кэше и в БД. Останавливается отменой контекста и не
// блокирует обслуживание запросов.
func (s *TokenService) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("очистка отметок отзыва остановлена")
				return
			case <-ticker.C:
				horizon := time.Now().UTC().Add(-s.horizon)

				swept := s.cache.Sweep(horizon)
				if swept > 0 {
					log.Printf("из кэша отзыва удалено %d устаревших отметок", swept)
				}

				if _, err := s.invalidationRepo.PruneBefore(ctx, horizon); err != nil {
					log.Printf("ошибка очистки отметок отзыва в БД: %v", err)
				}
			}
		}
	}()
}

// StartInvalidationListener подписывается на шину событий отзыва и
// сливает входящие события в локальный кэш на всё время жизни процесса.
// Неудачная подписка не валит процесс: он продолжает работать в
// деградированном режиме на одном локальном кэше.
func (s *TokenService) StartInvalidationListener(ctx context.Context) error {
	if s.bus == nil {
		return fmt.Errorf("шина событий не настроена")
	}

	events, err := s.bus.SubscribeInvalidations(ctx)
	if err != nil {
		return err
	}

	go func() {
		for event := range events {
			s.cache.Set(event.UserID, event.Time())
		}
		log.Println("подписка на события отзыва завершена")
	}()

	return nil
}
