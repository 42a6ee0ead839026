package security

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/ports"
	"trivia-auth-server/internal/util"
)

// SigningAlgorithm — единственный поддерживаемый алгоритм подписи.
const SigningAlgorithm = "HS256"

// ErrKeyUnavailable означает, что получить пригодный для подписи ключ не
// удалось даже после попытки самовосстановления. Блокирует все новые
// логины, поэтому логируется громко.
var ErrKeyUnavailable = errors.New("нет доступного ключа подписи")

const (
	defaultKeyLifetime = 720 * time.Hour
	keyCacheTTL        = time.Minute

	keySweepInterval = 24 * time.Hour
	keySweepGrace    = 24 * time.Hour
)

// KeyManager управляет ключами подписи: выдаёт текущий активный ключ
// (создавая его при холодном старте), набор проверочных ключей и
// выполняет ротацию. Проверочные ключи кэшируются в памяти, чтобы
// проверка токена не ходила в БД на каждый запрос.
type KeyManager struct {
	repo        ports.KeyRepository
	keyLifetime time.Duration

	// mu сериализует самовосстановление и ротацию: два конкурирующих
	// вызова не должны создать два «текущих» ключа.
	mu sync.Mutex

	cacheMu    sync.RWMutex
	cachedKeys map[string][]byte
	cacheUntil time.Time
}

func NewKeyManager(repo ports.KeyRepository, keyLifetime string) (*KeyManager, error) {
	if repo == nil {
		return nil, fmt.Errorf("KeyManager: репозиторий ключей не задан")
	}

	lifetime := defaultKeyLifetime
	if keyLifetime != "" {
		parsed, err := time.ParseDuration(keyLifetime)
		if err != nil {
			return nil, fmt.Errorf("KeyManager: некорректное время жизни ключа: %w", err)
		}
		lifetime = parsed
	}

	return &KeyManager{
		repo:        repo,
		keyLifetime: lifetime,
	}, nil
}

// CurrentSigningKey возвращает активный не истёкший ключ. Если такого
// ключа нет (холодный старт или дыра после истечения), атомарно создаёт
// новый. Ошибка возможна только при недоступности хранилища.
func (m *KeyManager) CurrentSigningKey(ctx context.Context) (*model.SigningKey, error) {
	key, err := m.repo.GetActiveKey(ctx)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Повторная проверка под блокировкой: конкурирующий вызов мог уже
	// создать ключ, пока мы ждали.
	key, err = m.repo.GetActiveKey(ctx)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	log.Println("активный ключ подписи не найден, создаём новый")
	key, err = m.createKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	m.invalidateKeyCache()
	return key, nil
}

// VerificationKeys возвращает kid → секрет для всех ключей, которыми ещё
// можно проверять подпись. Пустой результат валиден: проверка обязана
// закончиться отказом, а не пропуском.
func (m *KeyManager) VerificationKeys(ctx context.Context) (map[string][]byte, error) {
	m.cacheMu.RLock()
	if m.cachedKeys != nil && time.Now().Before(m.cacheUntil) {
		keys := m.cachedKeys
		m.cacheMu.RUnlock()
		return keys, nil
	}
	m.cacheMu.RUnlock()

	stored, err := m.repo.GetValidationKeys(ctx)
	if err != nil {
		return nil, util.LogError("не удалось получить проверочные ключи", err)
	}

	keys := make(map[string][]byte, len(stored))
	for _, k := range stored {
		if k.Algorithm != SigningAlgorithm || !k.CanVerify() {
			continue
		}
		keys[k.ID] = k.Secret
	}

	m.cacheMu.Lock()
	m.cachedKeys = keys
	m.cacheUntil = time.Now().Add(keyCacheTTL)
	m.cacheMu.Unlock()

	return keys, nil
}

// Rotate деактивирует текущий ключ и создаёт новый. Деактивированный
// ключ остаётся в наборе проверочных до собственного истечения, поэтому
// токены, подписанные за мгновение до ротации, продолжают проходить
// проверку.
func (m *KeyManager) Rotate(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.DeactivateActiveKeys(ctx, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("ротация: не удалось деактивировать ключи: %w", err)
	}

	key, err := m.createKey(ctx)
	if err != nil {
		return "", fmt.Errorf("ротация: не удалось создать новый ключ: %w", err)
	}

	m.invalidateKeyCache()
	log.Printf("ключ подписи ротирован, новый kid=%s", key.ID)
	return key.ID, nil
}

// PruneExpired удаляет ключи, истёкшие дольше grace назад.
func (m *KeyManager) PruneExpired(ctx context.Context, grace time.Duration) (int64, error) {
	removed, err := m.repo.PruneExpiredKeys(ctx, time.Now().UTC().Add(-grace))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.invalidateKeyCache()
	}
	return removed, nil
}

func (m *KeyManager) createKey(ctx context.Context) (*model.SigningKey, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, util.LogError("ошибка генерации секрета ключа", err)
	}

	now := time.Now().UTC()
	key := &model.SigningKey{
		ID:        uuid.New().String(),
		Secret:    secret,
		Algorithm: SigningAlgorithm,
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(m.keyLifetime),
	}

	if err := m.repo.CreateKey(ctx, key); err != nil {
		return nil, err
	}

	return key, nil
}

// StartCleanup запускает фоновое удаление давно истёкших ключей.
// Истёкший ключ держится ещё сутки: на случай расхождения часов между
// экземплярами токены с его подписью и так уже не проходят проверку.
func (m *KeyManager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(keySweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("очистка ключей подписи остановлена")
				return
			case <-ticker.C:
				removed, err := m.PruneExpired(ctx, keySweepGrace)
				if err != nil {
					log.Printf("ошибка удаления истёкших ключей: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("удалено %d истёкших ключей подписи", removed)
				}
			}
		}
	}()
}

func (m *KeyManager) invalidateKeyCache() {
	m.cacheMu.Lock()
	m.cachedKeys = nil
	m.cacheMu.Unlock()
}
