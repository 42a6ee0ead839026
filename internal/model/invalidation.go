package model

import "time"

// InvalidationMarker — персистентная отметка «выйти везде»: любой токен
// пользователя, выданный не позже InvalidationTime, считается отозванным
// независимо от собственного срока жизни.
type InvalidationMarker struct {
	UserID           int64     `db:"user_id" json:"user_id"`
	InvalidationTime time.Time `db:"invalidation_time" json:"invalidation_time"`
}

// InvalidationEvent — сообщение о массовом отзыве токенов, публикуемое
// в Redis для других экземпляров сервера.
type InvalidationEvent struct {
	UserID           int64 `json:"user_id"`
	InvalidationTime int64 `json:"invalidation_time"`
}

// Time возвращает момент отзыва как time.Time.
func (e InvalidationEvent) Time() time.Time {
	return time.Unix(e.InvalidationTime, 0).UTC()
}
