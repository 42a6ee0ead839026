package model

import "time"

// SigningKey представляет ключ подписи JWT и его метаданные.
// Идентификатор ключа (kid) попадает в заголовок каждого подписанного
// токена, поэтому проверка находит нужный секрет без перебора.
type SigningKey struct {
	ID         string     `db:"id" json:"id"`
	Secret     []byte     `db:"secret" json:"-"`
	Algorithm  string     `db:"algorithm" json:"algorithm"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	RotatedAt  *time.Time `db:"rotated_at" json:"rotated_at,omitempty"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
}

// IsExpired проверяет, истёк ли срок действия ключа.
func (k *SigningKey) IsExpired() bool {
	return time.Now().UTC().After(k.ExpiresAt)
}

// CanSign проверяет, может ли ключ подписывать новые токены.
// Ключ должен быть активным и не истёкшим.
func (k *SigningKey) CanSign() bool {
	return k.IsActive && !k.IsExpired()
}

// CanVerify проверяет, может ли ключ использоваться для проверки подписи.
// Неактивный (ротированный) ключ продолжает проверять уже выданные токены
// до собственного истечения — именно это делает ротацию бесшовной.
func (k *SigningKey) CanVerify() bool {
	return !k.IsExpired()
}
